// Package supervisor builds the live component graph (motion clients,
// the EtherCAT master, the scale, dispensers, hatches, sealers, the
// gantry) from a loaded configuration, the same config-to-running-system
// wiring job the CLI's start command otherwise has to do inline.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jaguerra767/control-components/internal/actuator"
	"github.com/jaguerra767/control-components/internal/dispenser"
	"github.com/jaguerra767/control-components/internal/ethercat"
	"github.com/jaguerra767/control-components/internal/gantry"
	"github.com/jaguerra767/control-components/internal/hatch"
	"github.com/jaguerra767/control-components/internal/logger"
	"github.com/jaguerra767/control-components/internal/motion"
	"github.com/jaguerra767/control-components/internal/scale"
	"github.com/jaguerra767/control-components/internal/sealer"
	"github.com/jaguerra767/control-components/pkg/config"
	"github.com/jaguerra767/control-components/pkg/metrics"
	ctlmetrics "github.com/jaguerra767/control-components/pkg/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultHBridgePower is the signed power level commanded to each
// hatch's NativeHBridge output; hatches drive small
// pneumatic or linear actuators rather than variable-speed motors, so
// one fixed power level is sufficient.
const defaultHBridgePower = 16000

// loadCellOpenTimeout bounds how long OpenAll waits for the first
// frame from each configured load cell.
const loadCellOpenTimeout = 5 * time.Second

// Supervisor owns every live component built from configuration and is
// responsible for serving the metrics endpoint, if enabled.
type Supervisor struct {
	clients map[string]*motion.Client

	ScaleActor      *scale.Actor
	Scale           *scale.Stream
	scaleSampleRate float64

	EtherCAT     *ethercat.Master
	FieldbusBits map[string]ethercat.Card

	Dispensers map[string]*dispenser.Dispenser
	Hatches    map[string]*hatch.Hatch
	Sealers    map[string]*sealer.Sealer
	Gantry     *gantry.Gantry

	metricsServer   *http.Server
	shutdownTimeout time.Duration
}

// Option configures Build with collaborators that cannot come from the
// config file itself.
type Option func(*buildOpts)

type buildOpts struct {
	fieldbus ethercat.Transport
}

// WithEtherCATTransport supplies the PDU transport the EtherCAT master
// is driven over. Without it the ethercat section of the configuration
// is ignored, since the master cannot run without a bus.
func WithEtherCATTransport(t ethercat.Transport) Option {
	return func(o *buildOpts) { o.fieldbus = t }
}

// Build constructs every component named in cfg. It is not partial:
// a failure wiring any one component aborts construction of the rest.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	var bo buildOpts
	for _, opt := range opts {
		opt(&bo)
	}

	s := &Supervisor{
		clients:         make(map[string]*motion.Client),
		FieldbusBits:    make(map[string]ethercat.Card),
		Dispensers:      make(map[string]*dispenser.Dispenser),
		Hatches:         make(map[string]*hatch.Hatch),
		Sealers:         make(map[string]*sealer.Sealer),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	for name, mc := range cfg.MotionControllers {
		s.clients[name] = motion.NewClient(ctx, mc.Address, motion.WithMetrics(ctlmetrics.NewMotionMetrics(name)))
	}

	if bo.fieldbus != nil && len(cfg.EtherCAT.Cards) > 0 {
		if err := s.buildEtherCAT(ctx, cfg.EtherCAT, bo.fieldbus); err != nil {
			return nil, fmt.Errorf("supervisor: ethercat: %w", err)
		}
	}

	if err := s.buildScale(ctx, cfg.Scale); err != nil {
		return nil, fmt.Errorf("supervisor: scale: %w", err)
	}

	for name, dc := range cfg.Dispensers {
		d, err := s.buildDispenser(dc)
		if err != nil {
			return nil, fmt.Errorf("supervisor: dispenser %q: %w", name, err)
		}
		s.Dispensers[name] = d
	}

	for name, hc := range cfg.Hatches {
		h, err := s.buildHatch(hc)
		if err != nil {
			return nil, fmt.Errorf("supervisor: hatch %q: %w", name, err)
		}
		s.Hatches[name] = h
	}

	for name, sc := range cfg.Sealers {
		sl, err := s.buildSealer(sc)
		if err != nil {
			return nil, fmt.Errorf("supervisor: sealer %q: %w", name, err)
		}
		s.Sealers[name] = sl
	}

	if cfg.Gantry.MotionController != "" {
		g, err := s.buildGantry(ctx, cfg.Gantry)
		if err != nil {
			return nil, fmt.Errorf("supervisor: gantry: %w", err)
		}
		s.Gantry = g
	}

	if cfg.Metrics.Enabled {
		s.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		}
	}

	return s, nil
}

func (s *Supervisor) client(name string) (*motion.Client, error) {
	c, ok := s.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown motion controller %q", name)
	}
	return c, nil
}

func (s *Supervisor) buildEtherCAT(ctx context.Context, ec config.EtherCATConfig, transport ethercat.Transport) error {
	layout := make(map[int]ethercat.CardLayout, len(ec.Cards))
	for _, cc := range ec.Cards {
		layout[cc.Card] = ethercat.CardLayout{InputOffset: cc.InputOffset, OutputOffset: cc.OutputOffset}
	}

	opts := []ethercat.Option{ethercat.WithMetrics(ctlmetrics.NewEtherCATMetrics())}
	if ec.Cycle > 0 {
		opts = append(opts, ethercat.WithCycle(ec.Cycle))
	}
	master, err := ethercat.NewMaster(ctx, transport, layout, opts...)
	if err != nil {
		return err
	}
	s.EtherCAT = master

	for cardName, cc := range ec.Cards {
		for bitName, bit := range cc.Bits {
			s.FieldbusBits[cardName+"."+bitName] = ethercat.NewCard(master, cc.Card, bit)
		}
	}
	return nil
}

func (s *Supervisor) buildScale(ctx context.Context, sc config.ScaleConfig) error {
	empty := true
	for _, cell := range sc.Cells {
		if cell.Port != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}

	var cells [4]scale.LoadCellDriver
	var serials, channels [4]int32
	for i, cell := range sc.Cells {
		cells[i] = scale.NewSerialLoadCell(cell.Port)
		serials[i] = cell.Serial
		channels[i] = cell.Channel
	}
	if err := scale.OpenAll(cells, serials, channels, loadCellOpenTimeout); err != nil {
		return err
	}

	actor := scale.NewActor(ctx, cells, sc.Coefficients, sc.Tare, scale.WithMetrics(ctlmetrics.NewScaleMetrics()))
	s.ScaleActor = actor
	s.Scale = scale.NewStream(ctx, actor, sc.SampleRate)
	s.scaleSampleRate = sc.SampleRate
	return nil
}

func (s *Supervisor) buildDispenser(dc config.DispenserConfig) (*dispenser.Dispenser, error) {
	client, err := s.client(dc.MotionController)
	if err != nil {
		return nil, err
	}
	motor, err := motion.NewMotor(client, dc.MotorID, dc.MotorScale)
	if err != nil {
		return nil, err
	}
	if s.ScaleActor == nil {
		return nil, fmt.Errorf("dispenser requires a configured scale")
	}

	params := dispenser.Params{
		MotorSpeed:      dc.MotorSpeed,
		SampleRate:      s.scaleSampleRate,
		CutoffFrequency: dc.CutoffFrequency,
		CheckOffset:     dc.CheckOffset,
		StopOffset:      dc.StopOffset,
	}
	if dc.RetractBefore != 0 {
		v := dc.RetractBefore
		params.RetractBefore = &v
	}
	if dc.RetractAfter != 0 {
		v := dc.RetractAfter
		params.RetractAfter = &v
	}

	opts := []dispenser.Option{
		dispenser.WithMetrics(ctlmetrics.NewDispenserMetrics()),
		dispenser.WithWeightStream(s.Scale),
	}
	if dc.BagSensorID != nil {
		opts = append(opts, dispenser.WithBagSensor(motion.NewDigitalInput(client, *dc.BagSensorID)))
	}

	return dispenser.New(motor, s.ScaleActor, params, opts...), nil
}

func (s *Supervisor) buildHatch(hc config.HatchConfig) (*hatch.Hatch, error) {
	client, err := s.client(hc.MotionController)
	if err != nil {
		return nil, err
	}
	bridge := motion.NewHBridge(client, hc.OutputID, defaultHBridgePower)
	feedback := motion.NewAnalogInput(client, hc.FeedbackID)
	act := actuator.NewNativeHBridge(bridge, feedback)
	return hatch.NewHatch(act, hc.OpenSetpoint, hc.CloseSetpoint, hc.Timeout), nil
}

func (s *Supervisor) buildSealer(sc config.SealerConfig) (*sealer.Sealer, error) {
	client, err := s.client(sc.MotionController)
	if err != nil {
		return nil, err
	}
	forward := motion.NewDigitalOutput(client, sc.ForwardOutputID)
	reverse := motion.NewDigitalOutput(client, sc.ReverseOutputID)
	feedback := motion.NewAnalogInput(client, sc.FeedbackID)
	act := actuator.NewRelayHBridge(forward, reverse, feedback, feedback)
	heater := motion.NewDigitalOutput(client, sc.HeaterOutputID)
	return sealer.NewSealer(act, heater, sc.ExtendSetpoint, sc.RetractSetpoint, sc.Dwell, sc.Timeout), nil
}

func (s *Supervisor) buildGantry(ctx context.Context, gc config.GantryConfig) (*gantry.Gantry, error) {
	client, err := s.client(gc.MotionController)
	if err != nil {
		return nil, err
	}
	motor, err := motion.NewMotor(client, gc.MotorID, gc.MotorScale)
	if err != nil {
		return nil, err
	}
	return gantry.NewGantry(ctx, motor)
}

// ServeMetrics blocks serving the Prometheus metrics endpoint until ctx
// is cancelled, then shuts the HTTP server down gracefully. It returns
// immediately with nil if metrics are disabled.
func (s *Supervisor) ServeMetrics(ctx context.Context) error {
	if s.metricsServer == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		grace := s.shutdownTimeout
		if grace == 0 {
			grace = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}
