package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/zsweep/internal/device"
	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/pkg/models"
)

// MockSessionService implements measurement.Service for testing
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Devices() ([]device.Info, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]device.Info), args.Error(1)
}

func (m *MockSessionService) Connect(ctx context.Context) (device.Info, error) {
	args := m.Called(ctx)
	return args.Get(0).(device.Info), args.Error(1)
}

func (m *MockSessionService) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionService) SetParameters(ctx context.Context, cfg models.SweepConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockSessionService) Start(ctx context.Context) (*models.Sweep, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sweep), args.Error(1)
}

func (m *MockSessionService) Cancel(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionService) State() models.SessionState {
	args := m.Called()
	return args.Get(0).(models.SessionState)
}

func (m *MockSessionService) Info() []models.InfoEntry {
	args := m.Called()
	return args.Get(0).([]models.InfoEntry)
}

func (m *MockSessionService) ClearInfo() {
	m.Called()
}

func (m *MockSessionService) Subscribe() (<-chan models.LiveEvent, func()) {
	args := m.Called()
	return args.Get(0).(<-chan models.LiveEvent), args.Get(1).(func())
}

// MockSweepRepository implements repository.SweepRepository for testing
type MockSweepRepository struct {
	mock.Mock
}

func (m *MockSweepRepository) Create(ctx context.Context, sweep *models.Sweep) error {
	args := m.Called(ctx, sweep)
	return args.Error(0)
}

func (m *MockSweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sweep), args.Error(1)
}

func (m *MockSweepRepository) List(ctx context.Context, limit int) ([]*models.Sweep, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Sweep), args.Error(1)
}

func (m *MockSweepRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *MockSweepRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockSweepRepository) UpdateFiles(ctx context.Context, id uuid.UUID, files []string, objectKeys []string) error {
	args := m.Called(ctx, id, files, objectKeys)
	return args.Error(0)
}

func (m *MockSweepRepository) StoreMeasurements(ctx context.Context, id uuid.UUID, measurements []models.Measurement) error {
	args := m.Called(ctx, id, measurements)
	return args.Error(0)
}

func (m *MockSweepRepository) GetMeasurements(ctx context.Context, id uuid.UUID) ([]models.Measurement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Measurement), args.Error(1)
}

func (m *MockSweepRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockResultStore implements storage.ResultStore for testing
type MockResultStore struct {
	mock.Mock
}

func (m *MockResultStore) UploadFile(ctx context.Context, key string, path string) error {
	args := m.Called(ctx, key, path)
	return args.Error(0)
}

func (m *MockResultStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockResultStore) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockResultStore) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected huma status error, got %v", err)
	return se.GetStatus()
}

func TestSessionHandler_Connect(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(*MockSessionService)
		wantCode  int
	}{
		{
			name: "device opened",
			mockSetup: func(svc *MockSessionService) {
				svc.On("Connect", mock.Anything).Return(device.Info{Name: "Analog Discovery 2", Serial: "SN:210321A1B2C3"}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "driver failure",
			mockSetup: func(svc *MockSessionService) {
				svc.On("Connect", mock.Anything).Return(device.Info{}, &device.DriverError{Op: "FDwfDeviceOpen", Msg: "Device not found"})
			},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "already connected",
			mockSetup: func(svc *MockSessionService) {
				svc.On("Connect", mock.Anything).Return(device.Info{}, measurement.ErrAlreadyConnected)
			},
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSessionService)
			tt.mockSetup(svc)
			handler := NewSessionHandler(svc)

			resp, err := handler.Connect(context.Background(), &struct{}{})
			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, "SN:210321A1B2C3", resp.Body.Serial)
			} else {
				assert.Equal(t, tt.wantCode, statusOf(t, err))
				assert.Nil(t, resp)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_SetParameters(t *testing.T) {
	cfg := models.DefaultSweepConfig()

	svc := new(MockSessionService)
	svc.On("SetParameters", mock.Anything, cfg).Return(nil).Once()
	svc.On("State").Return(models.SessionState{Connected: true, Parameters: &cfg})
	handler := NewSessionHandler(svc)

	resp, err := handler.SetParameters(context.Background(), &models.SetParametersRequest{Body: cfg})
	require.NoError(t, err)
	assert.True(t, resp.Body.Connected)
	assert.Equal(t, &cfg, resp.Body.Parameters)

	bad := cfg
	bad.FreqStep = 0
	svc.On("SetParameters", mock.Anything, bad).Return(bad.Validate())
	_, err = handler.SetParameters(context.Background(), &models.SetParametersRequest{Body: bad})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	svc.On("SetParameters", mock.Anything, mock.Anything).Return(measurement.ErrNotConnected)
	other := cfg
	other.Reference = 470
	_, err = handler.SetParameters(context.Background(), &models.SetParametersRequest{Body: other})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestSessionHandler_Info(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("Info").Return([]models.InfoEntry{{Time: time.Now(), Message: "AD2 connected"}})
	svc.On("ClearInfo").Return()
	handler := NewSessionHandler(svc)

	resp, err := handler.GetInfo(context.Background(), &struct{}{})
	require.NoError(t, err)
	require.Len(t, resp.Body.Entries, 1)
	assert.Equal(t, "AD2 connected", resp.Body.Entries[0].Message)

	_, err = handler.ClearInfo(context.Background(), &struct{}{})
	require.NoError(t, err)
	svc.AssertCalled(t, "ClearInfo")
}

func TestSweepHandler_StartAndCancel(t *testing.T) {
	svc := new(MockSessionService)
	sweep := &models.Sweep{ID: uuid.NewString(), Status: models.StatusPending}
	svc.On("Start", mock.Anything).Return(sweep, nil).Once()
	svc.On("Start", mock.Anything).Return(nil, measurement.ErrBusy)
	svc.On("Cancel", mock.Anything).Return(measurement.ErrNotRunning)
	handler := NewSweepHandler(svc, new(MockSweepRepository), nil)

	resp, err := handler.StartSweep(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, sweep.ID, resp.Body.ID)

	_, err = handler.StartSweep(context.Background(), &struct{}{})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	_, err = handler.CancelSweep(context.Background(), &struct{}{})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestSweepHandler_GetSweep(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name      string
		id        string
		mockSetup func(*MockSweepRepository)
		wantCode  int
	}{
		{
			name: "found",
			id:   id.String(),
			mockSetup: func(repo *MockSweepRepository) {
				repo.On("GetByID", mock.Anything, id).Return(&models.Sweep{ID: id.String(), Status: models.StatusRunning, Progress: 40}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name:      "invalid id",
			id:        "not-a-uuid",
			mockSetup: func(repo *MockSweepRepository) {},
			wantCode:  http.StatusBadRequest,
		},
		{
			name: "not found",
			id:   id.String(),
			mockSetup: func(repo *MockSweepRepository) {
				repo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrNotFound)
			},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockSweepRepository)
			tt.mockSetup(repo)
			handler := NewSweepHandler(new(MockSessionService), repo, nil)

			resp, err := handler.GetSweep(context.Background(), &models.GetSweepRequest{ID: tt.id})
			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, 40, resp.Body.Progress)
			} else {
				assert.Equal(t, tt.wantCode, statusOf(t, err))
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestSweepHandler_GetFiles(t *testing.T) {
	id := uuid.New()
	key := "sweeps/" + id.String() + "/impedance_100mV_1000Ohm_Inc.txt"

	repo := new(MockSweepRepository)
	repo.On("GetByID", mock.Anything, id).Return(&models.Sweep{ID: id.String(), Status: models.StatusCompleted, ObjectKeys: []string{key}}, nil)
	store := new(MockResultStore)
	store.On("GenerateDownloadURL", mock.Anything, key).Return("https://example.com/download", nil)

	resp, err := NewSweepHandler(new(MockSessionService), repo, store).GetFiles(context.Background(), &models.GetSweepRequest{ID: id.String()})
	require.NoError(t, err)
	require.Len(t, resp.Body.Files, 1)
	assert.Equal(t, "impedance_100mV_1000Ohm_Inc.txt", resp.Body.Files[0].Name)
	assert.Equal(t, "https://example.com/download", resp.Body.Files[0].URL)

	_, err = NewSweepHandler(new(MockSessionService), repo, nil).GetFiles(context.Background(), &models.GetSweepRequest{ID: id.String()})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestSweepHandler_GetMeasurements(t *testing.T) {
	id := uuid.New()
	repo := new(MockSweepRepository)
	repo.On("GetByID", mock.Anything, id).Return(&models.Sweep{ID: id.String(), Status: models.StatusRunning}, nil)
	repo.On("GetMeasurements", mock.Anything, id).Return([]models.Measurement{{Frequency: 1000, Impedance: 50}}, nil)

	resp, err := NewSweepHandler(new(MockSessionService), repo, nil).GetMeasurements(context.Background(), &models.GetSweepRequest{ID: id.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Body.Measurements, 1)
}

func TestSweepHandler_DownloadFile(t *testing.T) {
	id := uuid.New()
	key := "sweeps/" + id.String() + "/impedance_100mV_1000Ohm_Inc.txt"

	repo := new(MockSweepRepository)
	repo.On("GetByID", mock.Anything, id).Return(&models.Sweep{ID: id.String(), Status: models.StatusCompleted, ObjectKeys: []string{key}}, nil)
	store := new(MockResultStore)
	store.On("DownloadFile", mock.Anything, key).Return([]byte("1000.0\t50.0\t0.0\n"), nil)
	h := NewSweepHandler(new(MockSessionService), repo, store)

	resp, err := h.DownloadFile(context.Background(), &models.GetFileRequest{ID: id.String(), Name: "impedance_100mV_1000Ohm_Inc.txt"})
	require.NoError(t, err)
	assert.Equal(t, "text/tab-separated-values", resp.ContentType)
	assert.Contains(t, resp.ContentDisposition, "impedance_100mV_1000Ohm_Inc.txt")
	assert.Equal(t, []byte("1000.0\t50.0\t0.0\n"), resp.Body)

	_, err = h.DownloadFile(context.Background(), &models.GetFileRequest{ID: id.String(), Name: "other.txt"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = NewSweepHandler(new(MockSessionService), repo, nil).DownloadFile(context.Background(), &models.GetFileRequest{ID: id.String(), Name: "impedance_100mV_1000Ohm_Inc.txt"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	store.AssertExpectations(t)
}

func TestSweepHandler_DeleteSweep(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		deleteErr  error
		wantCode   int
		wantDelete bool
	}{
		{name: "completed sweep", status: models.StatusCompleted, wantDelete: true},
		{name: "failed sweep", status: models.StatusFailed, wantDelete: true},
		{name: "running sweep", status: models.StatusRunning, wantCode: http.StatusConflict},
		{name: "storage failure keeps record", status: models.StatusCompleted, deleteErr: errors.New("access denied"), wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.New()
			keys := []string{
				"sweeps/" + id.String() + "/impedance_100mV_1000Ohm_Inc.txt",
				"sweeps/" + id.String() + "/impedance_100mV_1000Ohm_Inc.parquet",
			}

			repo := new(MockSweepRepository)
			repo.On("GetByID", mock.Anything, id).Return(&models.Sweep{ID: id.String(), Status: tt.status, ObjectKeys: keys}, nil)
			store := new(MockResultStore)
			if tt.status != models.StatusRunning {
				for _, key := range keys {
					store.On("DeleteFile", mock.Anything, key).Return(tt.deleteErr)
				}
			}
			if tt.wantDelete {
				repo.On("Delete", mock.Anything, id).Return(nil)
			}

			resp, err := NewSweepHandler(new(MockSessionService), repo, store).DeleteSweep(context.Background(), &models.GetSweepRequest{ID: id.String()})
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, statusOf(t, err))
				repo.AssertNotCalled(t, "Delete", mock.Anything, id)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Sweep deleted", resp.Body.Message)
			}
			repo.AssertExpectations(t)
			store.AssertExpectations(t)
		})
	}
}
