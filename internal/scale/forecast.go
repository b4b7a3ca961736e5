package scale

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Regression fits a curve through observed samples.
type Regression interface {
	PredictY(x float64) float64
	PredictX(y float64) float64
	PrintFunction() string
}

// LinearRegression is a least squares fit of y = a + b*x.
type LinearRegression struct {
	a float64
	b float64
}

func NewLinearRegression(xs []float64, ys []float64) (*LinearRegression, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("mismatched sample lengths: %d and %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("need at least two samples, got %d", len(xs))
	}

	X := mat.NewDense(len(xs), 2, nil)
	for i, x := range xs {
		X.Set(i, 0, 1) // constant term
		X.Set(i, 1, x)
	}
	Y := mat.NewVecDense(len(ys), ys)

	var coef mat.VecDense
	if err := coef.SolveVec(X, Y); err != nil {
		return nil, fmt.Errorf("solving the linear system: %w", err)
	}

	return &LinearRegression{a: coef.AtVec(0), b: coef.AtVec(1)}, nil
}

func (regression *LinearRegression) PredictY(x float64) float64 {
	return regression.a + regression.b*x
}

func (regression *LinearRegression) PredictX(y float64) float64 {
	if regression.b == 0 {
		return math.NaN()
	}
	return (y - regression.a) / regression.b
}

func (regression *LinearRegression) PrintFunction() string {
	return fmt.Sprintf("f(x) = %.2f + %.2f * x", regression.a, regression.b)
}

// LoadForecast extrapolates cluster load from the aggregated metrics
// history. The x axis is the evaluation tick index.
type LoadForecast struct {
	cpuTrend    Regression
	memoryTrend Regression
	samples     int
}

// ForecastReport is the wire form of a forecast.
type ForecastReport struct {
	Samples         int     `json:"samples"`
	TicksAhead      int     `json:"ticks_ahead"`
	CpuTrend        string  `json:"cpu_trend"`
	MemoryTrend     string  `json:"memory_trend"`
	PredictedCpu    float64 `json:"predicted_cpu"`
	PredictedMemory float64 `json:"predicted_memory"`
}

// Forecast fits cpu and memory trends over the most recent maxSamples
// aggregation samples; maxSamples <= 0 uses the whole history. At least two
// samples must exist.
func (controller *Controller) Forecast(maxSamples int) (*LoadForecast, error) {
	history := controller.MetricsHistory(maxSamples)
	if len(history) < 2 {
		return nil, fmt.Errorf("need at least two aggregation samples, got %d", len(history))
	}

	xs := make([]float64, len(history))
	cpuYs := make([]float64, len(history))
	memoryYs := make([]float64, len(history))
	for i, sample := range history {
		xs[i] = float64(i)
		cpuYs[i] = sample.AverageCpu
		memoryYs[i] = sample.AverageMemory
	}

	cpuTrend, err := NewLinearRegression(xs, cpuYs)
	if err != nil {
		return nil, err
	}
	memoryTrend, err := NewLinearRegression(xs, memoryYs)
	if err != nil {
		return nil, err
	}

	return &LoadForecast{
		cpuTrend:    cpuTrend,
		memoryTrend: memoryTrend,
		samples:     len(history),
	}, nil
}

// PredictCpu extrapolates average cpu usage ticksAhead evaluation ticks past
// the newest sample.
func (forecast *LoadForecast) PredictCpu(ticksAhead int) float64 {
	return forecast.cpuTrend.PredictY(float64(forecast.samples - 1 + ticksAhead))
}

// PredictMemory extrapolates average memory usage ticksAhead evaluation
// ticks past the newest sample.
func (forecast *LoadForecast) PredictMemory(ticksAhead int) float64 {
	return forecast.memoryTrend.PredictY(float64(forecast.samples - 1 + ticksAhead))
}

// TicksUntilCpu estimates how many ticks until average cpu reaches level.
// The second return is false when the trend never reaches it.
func (forecast *LoadForecast) TicksUntilCpu(level float64) (int, bool) {
	x := forecast.cpuTrend.PredictX(level)
	if math.IsNaN(x) {
		return 0, false
	}

	ticks := int(math.Ceil(x)) - (forecast.samples - 1)
	if ticks < 0 {
		return 0, false
	}

	return ticks, true
}

func (forecast *LoadForecast) Report(ticksAhead int) ForecastReport {
	return ForecastReport{
		Samples:         forecast.samples,
		TicksAhead:      ticksAhead,
		CpuTrend:        forecast.cpuTrend.PrintFunction(),
		MemoryTrend:     forecast.memoryTrend.PrintFunction(),
		PredictedCpu:    forecast.PredictCpu(ticksAhead),
		PredictedMemory: forecast.PredictMemory(ticksAhead),
	}
}
