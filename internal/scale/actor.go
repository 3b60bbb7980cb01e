package scale

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jaguerra767/control-components/internal/ctlerr"
	"github.com/jaguerra767/control-components/internal/logger"
)

// maxInflightQueries bounds how many pull-interface queries may be
// outstanding against the blocking worker at once; further callers wait
// at the semaphore rather than piling onto the request channel.
const maxInflightQueries = 4

// Metrics receives optional instrumentation callbacks.
type Metrics interface {
	IncReadError(cellIndex int)
}

type noopMetrics struct{}

func (noopMetrics) IncReadError(int) {}

type weightResult struct {
	value float64
	err   error
}

type perCellResult struct {
	value [4]float64
	err   error
}

type request struct {
	updateCoeffs     *[4]float64
	getWeight        chan weightResult
	getMedianWeight  *medianReq
	getMedianPerCell *medianReq
}

type medianReq struct {
	rateHz   float64
	duration time.Duration
	weight   chan weightResult
	perCell  chan perCellResult
}

// Actor owns four load-cell driver handles and runs on a dedicated
// worker goroutine, since the driver interface is blocking. All state
// (coefficients, tare) is mutated only by that goroutine.
type Actor struct {
	cells        [4]LoadCellDriver
	coefficients [4]float64
	tare         float64

	requests chan request
	done     chan struct{}
	queries  *semaphore.Weighted
	metrics  Metrics
}

// Option configures an Actor at construction time.
type Option func(*Actor)

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(a *Actor) { a.metrics = m }
}

// NewActor constructs an Actor over four opened load-cell drivers with
// initial coefficients and tare, and starts its worker loop on a new
// goroutine.
func NewActor(ctx context.Context, cells [4]LoadCellDriver, coefficients [4]float64, tare float64, opts ...Option) *Actor {
	a := &Actor{
		cells:        cells,
		coefficients: coefficients,
		tare:         tare,
		requests:     make(chan request, 16),
		done:         make(chan struct{}),
		queries:      semaphore.NewWeighted(maxInflightQueries),
		metrics:      noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run(ctx)
	return a
}

func (a *Actor) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-a.requests:
			if !ok {
				return
			}
			a.handle(ctx, req)
		}
	}
}

func (a *Actor) handle(ctx context.Context, req request) {
	switch {
	case req.updateCoeffs != nil:
		a.coefficients = *req.updateCoeffs
	case req.getWeight != nil:
		w, err := a.sampleWeight()
		req.getWeight <- weightResult{value: w, err: err}
	case req.getMedianWeight != nil:
		w, err := a.medianWeight(ctx, req.getMedianWeight.rateHz, req.getMedianWeight.duration)
		req.getMedianWeight.weight <- weightResult{value: w, err: err}
	case req.getMedianPerCell != nil:
		v, err := a.medianPerCell(ctx, req.getMedianPerCell.rateHz, req.getMedianPerCell.duration)
		req.getMedianPerCell.perCell <- perCellResult{value: v, err: err}
	}
}

// readCells takes one blocking reading from every cell.
func (a *Actor) readCells() ([4]float64, error) {
	var readings [4]float64
	for i, cell := range a.cells {
		v, err := cell.VoltageRatio()
		if err != nil {
			a.metrics.IncReadError(i)
			return readings, fmt.Errorf("scale: read cell %d: %w", i, err)
		}
		readings[i] = v
	}
	return readings, nil
}

func (a *Actor) weightFrom(readings [4]float64) float64 {
	var w float64
	for i, r := range readings {
		w += a.coefficients[i] * r
	}
	return w - a.tare
}

func (a *Actor) sampleWeight() (float64, error) {
	readings, err := a.readCells()
	if err != nil {
		return 0, err
	}
	return a.weightFrom(readings), nil
}

func windowSampleCount(rateHz float64, duration time.Duration) int {
	n := int(rateHz * duration.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}

func (a *Actor) medianWeight(ctx context.Context, rateHz float64, duration time.Duration) (float64, error) {
	n := windowSampleCount(rateHz, duration)
	interval := time.Duration(float64(time.Second) / rateHz)
	samples := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(interval):
			}
		}
		w, err := a.sampleWeight()
		if err != nil {
			return 0, err
		}
		samples = append(samples, w)
	}
	return median(samples), nil
}

func (a *Actor) medianPerCell(ctx context.Context, rateHz float64, duration time.Duration) ([4]float64, error) {
	n := windowSampleCount(rateHz, duration)
	interval := time.Duration(float64(time.Second) / rateHz)
	var samples [4][]float64
	for c := range samples {
		samples[c] = make([]float64, 0, n)
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return [4]float64{}, ctx.Err()
			case <-time.After(interval):
			}
		}
		readings, err := a.readCells()
		if err != nil {
			return [4]float64{}, err
		}
		for c, v := range readings {
			samples[c] = append(samples[c], v)
		}
	}
	var out [4]float64
	for c := range out {
		out[c] = median(samples[c])
	}
	return out, nil
}

// median sorts a copy of samples ascending and returns the middle element,
// breaking even-length ties by taking the upper-middle index.
func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

// UpdateCoefficients replaces the actor's weighting coefficients.
func (a *Actor) UpdateCoefficients(ctx context.Context, coefficients [4]float64) error {
	select {
	case a.requests <- request{updateCoeffs: &coefficients}:
		return nil
	case <-a.done:
		return ctlerr.ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetWeight returns one instantaneous weight sample.
func (a *Actor) GetWeight(ctx context.Context) (float64, error) {
	if err := a.queries.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer a.queries.Release(1)

	reply := make(chan weightResult, 1)
	select {
	case a.requests <- request{getWeight: reply}:
	case <-a.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-a.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// GetMedianWeight returns the median of a fixed-size window of samples
// taken at rateHz across duration.
func (a *Actor) GetMedianWeight(ctx context.Context, rateHz float64, duration time.Duration) (float64, error) {
	if err := a.queries.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer a.queries.Release(1)

	reply := make(chan weightResult, 1)
	mr := &medianReq{rateHz: rateHz, duration: duration, weight: reply}
	select {
	case a.requests <- request{getMedianWeight: mr}:
	case <-a.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-a.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// GetMedianPerCell returns a per-cell median vector over the same kind of
// window as GetMedianWeight, for calibration.
func (a *Actor) GetMedianPerCell(ctx context.Context, rateHz float64, duration time.Duration) ([4]float64, error) {
	if err := a.queries.Acquire(ctx, 1); err != nil {
		return [4]float64{}, err
	}
	defer a.queries.Release(1)

	reply := make(chan perCellResult, 1)
	mr := &medianReq{rateHz: rateHz, duration: duration, perCell: reply}
	select {
	case a.requests <- request{getMedianPerCell: mr}:
	case <-a.done:
		return [4]float64{}, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return [4]float64{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-a.done:
		return [4]float64{}, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return [4]float64{}, ctx.Err()
	}
}

// OpenAll opens every cell's driver, waiting up to timeout each, and
// configures each for its fastest supported sample rate. A setup failure
// here is fatal to the caller, matching the "setup error aborts the
// actor" rule: callers should not construct an Actor over cells that
// failed to open.
func OpenAll(cells [4]LoadCellDriver, serials [4]int32, channels [4]int32, timeout time.Duration) error {
	for i, cell := range cells {
		cell.SetSerialNumber(serials[i])
		cell.SetChannel(channels[i])
		if err := cell.OpenWait(timeout); err != nil {
			logger.Error("scale cell failed to open", "cell", i, "error", err)
			return fmt.Errorf("%w: cell %d: %v", ctlerr.ErrHardwareUnavailable, i, err)
		}
		cell.SetDataInterval(cell.MinDataInterval())
	}
	return nil
}
