// Package measurement runs the bench session: connecting the analyzer,
// applying parameters and running sweeps in the background while their
// progress is persisted and streamed to subscribers.
package measurement

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/internal/device"
	"github.com/RMahshie/zsweep/internal/output"
	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/internal/storage"
	"github.com/RMahshie/zsweep/internal/sweep"
	"github.com/RMahshie/zsweep/pkg/models"
)

var (
	ErrNotConnected     = errors.New("analyzer not connected")
	ErrAlreadyConnected = errors.New("analyzer already connected")
	ErrNoParameters     = errors.New("parameters not set")
	ErrBusy             = errors.New("a sweep is running")
	ErrNotRunning       = errors.New("no sweep is running")
)

// Service is the bench session
type Service interface {
	Devices() ([]device.Info, error)
	Connect(ctx context.Context) (device.Info, error)
	Disconnect(ctx context.Context) error
	SetParameters(ctx context.Context, cfg models.SweepConfig) error
	Start(ctx context.Context) (*models.Sweep, error)
	Cancel(ctx context.Context) error
	State() models.SessionState
	Info() []models.InfoEntry
	ClearInfo()
	Subscribe() (<-chan models.LiveEvent, func())
}

// Option configures the service
type Option func(*service)

// WithStore uploads the result files of every sweep
func WithStore(store storage.ResultStore) Option { return func(s *service) { s.store = store } }

// WithOutputDir sets the directory result files are written to. Every sweep
// gets its own subdirectory named after its ID.
func WithOutputDir(dir string) Option { return func(s *service) { s.outputDir = dir } }

// WithOutput passes options to the result file factory of every sweep
func WithOutput(opts ...output.FactoryOption) Option {
	return func(s *service) { s.outputOpts = append(s.outputOpts, opts...) }
}

// WithRunnerOptions passes options to the sweep runner
func WithRunnerOptions(opts ...sweep.RunnerOption) Option {
	return func(s *service) { s.runnerOpts = append(s.runnerOpts, opts...) }
}

// WithBatchSize sets how many measurements are buffered before they are stored
func WithBatchSize(n int) Option { return func(s *service) { s.batchSize = n } }

const (
	subscriberBuffer = 64
	infoLimit        = 500
)

type run struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

type service struct {
	dev        device.Analyzer
	repo       repository.SweepRepository
	store      storage.ResultStore
	outputDir  string
	outputOpts []output.FactoryOption
	runnerOpts []sweep.RunnerOption
	batchSize  int

	mu          sync.Mutex
	connected   bool
	configuring bool
	info        device.Info
	params      *models.SweepConfig
	running     *run

	infoMu  sync.Mutex
	infoLog []models.InfoEntry

	subsMu sync.Mutex
	subs   map[chan models.LiveEvent]struct{}
}

// NewService creates a session for one analyzer
func NewService(dev device.Analyzer, repo repository.SweepRepository, opts ...Option) Service {
	s := &service{
		dev:       dev,
		repo:      repo,
		outputDir: ".",
		batchSize: 100,
		subs:      make(map[chan models.LiveEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) runner(extra ...sweep.RunnerOption) *sweep.Runner {
	return sweep.NewRunner(s.dev, append(append([]sweep.RunnerOption{}, s.runnerOpts...), extra...)...)
}

// busy reports whether the analyzer is in use; s.mu must be held.
func (s *service) busy() bool {
	return s.running != nil || s.configuring
}

func (s *service) Devices() ([]device.Info, error) {
	return s.dev.Enumerate()
}

func (s *service) Connect(ctx context.Context) (device.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return s.info, ErrAlreadyConnected
	}
	if err := s.dev.Open(ctx); err != nil {
		s.addInfo(err.Error())
		return device.Info{}, err
	}
	s.connected = true
	s.info = s.dev.Info()
	s.addInfo("AD2 connected")
	log.Info().Str("device", s.info.Name).Str("serial", s.info.Serial).Str("version", s.info.Version).Msg("Analyzer connected")
	return s.info, nil
}

func (s *service) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	if s.busy() {
		return ErrBusy
	}
	err := s.dev.Close()
	s.connected = false
	s.info = device.Info{}
	s.params = nil
	s.addInfo("AD2 disconnected")
	log.Info().Msg("Analyzer disconnected")
	return err
}

// SetParameters configures the analyzer. The session lock is released while
// the bridge settles so State stays responsive.
func (s *service) SetParameters(ctx context.Context, cfg models.SweepConfig) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.configuring = true
	s.mu.Unlock()

	err := s.runner().Configure(ctx, cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configuring = false
	if err != nil {
		s.addInfo("Something went wrong! " + err.Error())
		return err
	}
	s.params = &cfg
	if cfg.Decrease {
		s.addInfo("All Parameters set + DECREASE")
	} else {
		s.addInfo("All Parameters set")
	}
	return nil
}

func (s *service) Start(ctx context.Context) (*models.Sweep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	if s.busy() {
		return nil, ErrBusy
	}
	if s.params == nil {
		return nil, ErrNoParameters
	}

	cfg := *s.params
	points := sweep.Points(cfg)
	id := uuid.New()
	now := time.Now()
	record := &models.Sweep{
		ID:        id.String(),
		Status:    models.StatusPending,
		Config:    cfg,
		Device:    s.info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create sweep: %w", err)
	}

	factory, err := output.NewFactory(filepath.Join(s.outputDir, id.String()), cfg, s.outputOpts...)
	if err != nil {
		if uerr := s.repo.UpdateError(context.Background(), id, err.Error()); uerr != nil {
			log.Error().Err(uerr).Str("sweepID", id.String()).Msg("Failed to record sweep status")
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{id: id, cancel: cancel, done: make(chan struct{})}
	s.running = r

	log.Info().Str("sweepID", id.String()).Int("points", points).Msg("Starting sweep")
	go s.execute(runCtx, r, cfg, factory)

	return record, nil
}

// execute runs on its own goroutine. Repository writes use a fresh context
// so a cancelled sweep still records its final state.
func (s *service) execute(ctx context.Context, r *run, cfg models.SweepConfig, factory *output.Factory) {
	defer func() {
		r.cancel()
		s.mu.Lock()
		s.running = nil
		s.mu.Unlock()
		close(r.done)
	}()

	bg := context.Background()
	id := r.id
	if err := s.repo.UpdateStatus(bg, id, models.StatusRunning, 0); err != nil {
		log.Error().Err(err).Str("sweepID", id.String()).Msg("Failed to mark sweep running")
	}
	s.publish(models.LiveEvent{Type: models.EventStatus, SweepID: id.String(), Status: models.StatusRunning})

	var (
		batch    []models.Measurement
		storeErr error
		percent  = -1
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		storeErr = multierr.Append(storeErr, s.repo.StoreMeasurements(bg, id, batch))
		batch = batch[:0]
	}

	passStart := sweep.WithPassStart(func(amp int, dir models.Direction) {
		s.addInfo("Start Measurement " + dir.Suffix() + ": " + strconv.Itoa(amp) + "mV")
	})
	res, err := s.runner(passStart).Run(ctx, cfg, factory, func(p sweep.Progress) {
		m := p.Measurement
		batch = append(batch, m)
		if len(batch) >= s.batchSize {
			flush()
		}
		if pc := p.Percent(); pc != percent {
			percent = pc
			if err := s.repo.UpdateStatus(bg, id, models.StatusRunning, pc); err != nil {
				log.Warn().Err(err).Str("sweepID", id.String()).Msg("Failed to update progress")
			}
		}
		s.publish(models.LiveEvent{Type: models.EventMeasurement, SweepID: id.String(), Progress: p.Percent(), Measurement: &m})
	})
	flush()

	files := factory.Files()
	keys := s.upload(bg, id, files)
	if uerr := s.repo.UpdateFiles(bg, id, files, keys); uerr != nil {
		log.Error().Err(uerr).Str("sweepID", id.String()).Msg("Failed to record result files")
	}
	if storeErr != nil {
		log.Error().Err(storeErr).Str("sweepID", id.String()).Msg("Failed to store measurements")
		err = multierr.Append(err, storeErr)
	}

	status := models.StatusCompleted
	switch {
	case err == nil:
		err = s.repo.UpdateStatus(bg, id, models.StatusCompleted, 100)
		percent = 100
	case errors.Is(err, context.Canceled):
		status = models.StatusCancelled
		err = s.repo.UpdateStatus(bg, id, models.StatusCancelled, max(percent, 0))
		s.addInfo("Measurement cancelled")
	default:
		status = models.StatusFailed
		s.addInfo(err.Error())
		log.Error().Err(err).Str("sweepID", id.String()).Msg("Sweep failed")
		err = s.repo.UpdateError(bg, id, err.Error())
	}
	if err != nil {
		log.Error().Err(err).Str("sweepID", id.String()).Msg("Failed to record sweep status")
	}

	s.addInfo(fmt.Sprintf("Finished: %.2fs", res.Elapsed.Seconds()))
	log.Info().Str("sweepID", id.String()).Str("status", status).Int("points", res.Points).Dur("elapsed", res.Elapsed).Msg("Sweep finished")
	s.publish(models.LiveEvent{Type: models.EventStatus, SweepID: id.String(), Status: status, Progress: max(percent, 0)})
}

// upload stores the result files and returns their keys. Files that fail to
// upload are logged and left out.
func (s *service) upload(ctx context.Context, id uuid.UUID, files []string) []string {
	if s.store == nil {
		return nil
	}
	var keys []string
	for _, path := range files {
		key := storage.ObjectKey(id.String(), path)
		if err := s.store.UploadFile(ctx, key, path); err != nil {
			log.Error().Err(err).Str("sweepID", id.String()).Str("file", path).Msg("Failed to upload result file")
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Cancel stops the running sweep and waits until it has wound down or ctx ends.
func (s *service) Cancel(ctx context.Context) error {
	s.mu.Lock()
	r := s.running
	s.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}
	log.Info().Str("sweepID", r.id.String()).Msg("Cancelling sweep")
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.SessionState{Connected: s.connected}
	if s.connected {
		info := s.info
		st.Device = &info
	}
	if s.params != nil {
		cfg := *s.params
		st.Parameters = &cfg
	}
	if s.running != nil {
		id := s.running.id.String()
		st.RunningID = &id
	}
	return st
}

func (s *service) addInfo(msg string) {
	entry := models.InfoEntry{Time: time.Now(), Message: msg}
	s.infoMu.Lock()
	s.infoLog = append(s.infoLog, entry)
	if len(s.infoLog) > infoLimit {
		s.infoLog = s.infoLog[len(s.infoLog)-infoLimit:]
	}
	s.infoMu.Unlock()
	s.publish(models.LiveEvent{Type: models.EventInfo, Message: msg, Time: entry.Time})
}

func (s *service) Info() []models.InfoEntry {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	return append([]models.InfoEntry{}, s.infoLog...)
}

func (s *service) ClearInfo() {
	s.infoMu.Lock()
	s.infoLog = nil
	s.infoMu.Unlock()
}

// Subscribe returns a channel of live events and a function that ends the
// subscription. Slow subscribers miss events rather than block the sweep.
func (s *service) Subscribe() (<-chan models.LiveEvent, func()) {
	ch := make(chan models.LiveEvent, subscriberBuffer)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, ch)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

func (s *service) publish(ev models.LiveEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
