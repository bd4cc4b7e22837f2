package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/attestly/ledger/cmd/ledgerd/middleware"
	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/cmd/ledgerd/service"
	"github.com/attestly/ledger/common/contentkey"
	"github.com/attestly/ledger/common/logger"
	"github.com/attestly/ledger/common/queue"
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"github.com/labstack/echo/v4"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	records map[models.RecordID]*models.Record
	order   []models.RecordID
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[models.RecordID]*models.Record)}
}

func (s *stubStore) Insert(ctx context.Context, id models.RecordID, record *models.Record) error {
	if _, exists := s.records[id]; exists {
		return models.ErrDuplicateRecord
	}
	s.records[id] = record
	s.order = append(s.order, id)
	return nil
}

func (s *stubStore) Get(ctx context.Context, id models.RecordID) (*models.Record, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return record, nil
}

func (s *stubStore) ListIDs(ctx context.Context) ([]models.RecordID, error) {
	return s.order, nil
}

func (s *stubStore) MaxCreatedAt(ctx context.Context) (int64, error) {
	return 0, nil
}

type stubBroker struct {
	err error
}

func (b *stubBroker) CreateAgreement(ctx context.Context, params service.AgreementParams) (models.AgreementID, error) {
	if b.err != nil {
		return models.AgreementID{}, b.err
	}
	return models.AgreementID{0x42}, nil
}

// collidingStore rejects every insert the way the repository does when the
// derived record id already exists.
type collidingStore struct {
	*stubStore
}

func (s *collidingStore) Insert(ctx context.Context, id models.RecordID, record *models.Record) error {
	return models.ErrDuplicateRecord
}

type dropQueue struct{}

func (dropQueue) Publish(ctx context.Context, topic, key string, message []byte) error { return nil }
func (dropQueue) Subscribe(ctx context.Context, topic string, handler queue.MessageHandler) error {
	return nil
}
func (dropQueue) Close() error { return nil }

func newTestHandler(broker *stubBroker) (*RecordHandler, *stubStore) {
	log := logger.New("error", "json")
	store := newStubStore()
	ledger := service.NewLedgerService(store, broker, dropQueue{}, "ledger.records.created", "", log)
	return NewRecordHandler(ledger, log), store
}

func createRequest(t *testing.T, body string, uploader string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uploader != "" {
		addr, err := address.NewFromString(uploader)
		require.NoError(t, err)
		c.Set(string(middleware.UploaderKey), addr)
	}
	return c, rec
}

const validBody = `{
	"content_id": "bafyhandlertest",
	"provider": "f01000",
	"size_bytes": 1073741824,
	"schedule": [{"id": "monthly", "periodSeconds": 2592000, "amount": "10000000000000"}],
	"category": "archive",
	"value": "10000000000000"
}`

func TestCreateRecordEndpoint(t *testing.T) {
	handler, store := newTestHandler(&stubBroker{})

	c, rec := createRequest(t, validBody, "f0100")
	require.NoError(t, handler.CreateRecord(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	stored, err := store.Get(context.Background(), resp.RecordID)
	require.NoError(t, err)
	assert.Equal(t, resp.RecordID, stored.ID())
	assert.True(t, stored.Pinned)
	assert.Equal(t, uint64(1073741824), stored.SizeBytes)
}

func TestCreateRecordEndpoint_MissingUploader(t *testing.T) {
	handler, _ := newTestHandler(&stubBroker{})

	c, rec := createRequest(t, validBody, "")
	require.NoError(t, handler.CreateRecord(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRecordEndpoint_BrokerRejection(t *testing.T) {
	broker := &stubBroker{err: fmt.Errorf("%w: no capacity", models.ErrAgreementRejected)}
	handler, store := newTestHandler(broker)

	c, rec := createRequest(t, validBody, "f0100")
	require.NoError(t, handler.CreateRecord(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, store.order)
}

func TestCreateRecordEndpoint_InvalidProvider(t *testing.T) {
	handler, _ := newTestHandler(&stubBroker{})

	body := strings.Replace(validBody, "f01000", "not-an-address", 1)
	c, rec := createRequest(t, body, "f0100")
	require.NoError(t, handler.CreateRecord(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRecordEndpoint_EmptySchedule(t *testing.T) {
	handler, _ := newTestHandler(&stubBroker{})

	body := strings.Replace(validBody,
		`[{"id": "monthly", "periodSeconds": 2592000, "amount": "10000000000000"}]`, "[]", 1)
	c, rec := createRequest(t, body, "f0100")
	require.NoError(t, handler.CreateRecord(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRecordEndpoint_CIDContentID(t *testing.T) {
	handler, store := newTestHandler(&stubBroker{})

	digest, err := mh.Sum([]byte("handler cid"), mh.SHA2_256, -1)
	require.NoError(t, err)
	c := cid.NewCidV1(cid.Raw, digest)

	body := strings.Replace(validBody, "bafyhandlertest", c.String(), 1)
	ctx, rec := createRequest(t, body, "f0100")
	require.NoError(t, handler.CreateRecord(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	stored, err := store.Get(context.Background(), resp.RecordID)
	require.NoError(t, err)
	assert.Equal(t, contentkey.FromCID(c), stored.ContentKey)
	assert.NotEqual(t, contentkey.FromString(c.String()), stored.ContentKey)
}

func TestCreateRecordEndpoint_MissingValue(t *testing.T) {
	handler, store := newTestHandler(&stubBroker{})

	body := strings.Replace(validBody, `,
	"value": "10000000000000"`, "", 1)
	c, rec := createRequest(t, body, "f0100")
	require.NoError(t, handler.CreateRecord(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.order)
}

func TestCreateRecordEndpoint_DuplicateRecord(t *testing.T) {
	log := logger.New("error", "json")
	store := &collidingStore{newStubStore()}
	ledger := service.NewLedgerService(store, &stubBroker{}, dropQueue{}, "ledger.records.created", "", log)
	handler := NewRecordHandler(ledger, log)

	c, rec := createRequest(t, validBody, "f0100")
	require.NoError(t, handler.CreateRecord(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, store.order)
}

func TestGetRecordEndpoint(t *testing.T) {
	handler, store := newTestHandler(&stubBroker{})

	uploader, _ := address.NewFromString("f0100")
	record := &models.Record{
		Uploader:  uploader,
		CreatedAt: 1700000000,
		Category:  "archive",
		SizeBytes: 42,
		Pinned:    true,
	}
	id := record.ID()
	require.NoError(t, store.Insert(context.Background(), id, record))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/records/:id")
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	require.NoError(t, handler.GetRecord(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, id, decoded.ID())
}

func TestGetRecordEndpoint_NotFound(t *testing.T) {
	handler, _ := newTestHandler(&stubBroker{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/records/:id")
	c.SetParamNames("id")
	c.SetParamValues(models.RecordID{0xff}.String())

	require.NoError(t, handler.GetRecord(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRecordIDsEndpoint(t *testing.T) {
	handler, store := newTestHandler(&stubBroker{})

	uploader, _ := address.NewFromString("f0100")
	for i := int64(1); i <= 3; i++ {
		record := &models.Record{Uploader: uploader, CreatedAt: i, Pinned: true}
		require.NoError(t, store.Insert(context.Background(), record.ID(), record))
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.ListRecordIDs(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RecordIDs []models.RecordID `json:"record_ids"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.RecordIDs, 3)
}
