package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"einvoice/internal/cache"
	"einvoice/internal/database"
	"einvoice/internal/fbr"
	"einvoice/internal/model"
	"einvoice/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type mockFBR struct {
	mock.Mock
}

func (m *mockFBR) ValidateInvoice(ctx context.Context, token string, payload fbr.InvoicePayload) (*fbr.Response, error) {
	args := m.Called(ctx, token, payload)
	resp, _ := args.Get(0).(*fbr.Response)
	return resp, args.Error(1)
}

func (m *mockFBR) PostInvoice(ctx context.Context, token string, payload fbr.InvoicePayload) (*fbr.Response, error) {
	args := m.Called(ctx, token, payload)
	resp, _ := args.Get(0).(*fbr.Response)
	return resp, args.Error(1)
}

func (m *mockFBR) RegistrationType(ctx context.Context, token, ntnCnic string, date time.Time) (string, error) {
	args := m.Called(ctx, token, ntnCnic, date)
	return args.String(0), args.Error(1)
}

type publishedEvent struct {
	orgID uuid.UUID
	event string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(orgID uuid.UUID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{orgID: orgID, event: event})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event)
	}
	return out
}

// env wires every service against one in-memory database.
type env struct {
	db        *gorm.DB
	org       *model.Organization
	user      *model.User
	actor     Actor
	fbr       *mockFBR
	locks     *cache.Memory
	publisher *recordingPublisher

	invoices    InvoiceService
	buyers      BuyerService
	statistics  StatisticsService
	invoiceRepo repository.InvoiceRepository
	buyerRepo   repository.BuyerRepository
	auditRepo   repository.AuditRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	org := &model.Organization{BusinessName: "Seller Co", NTNCNIC: "1234567", Province: "Punjab", Address: "Lahore", FBRToken: "fbr-token"}
	require.NoError(t, repository.NewOrganizationRepository(db).Create(ctx, org))
	user := &model.User{OrganizationID: &org.ID, Username: "owner", Email: "owner@example.com", Password: "x", Role: model.RoleAdmin}
	require.NoError(t, repository.NewUserRepository(db).Create(ctx, user))

	e := &env{
		db:          db,
		org:         org,
		user:        user,
		actor:       Actor{UserID: user.ID, OrganizationID: &org.ID, Role: model.RoleAdmin},
		fbr:         &mockFBR{},
		locks:       cache.NewMemory(),
		publisher:   &recordingPublisher{},
		invoiceRepo: repository.NewInvoiceRepository(db),
		buyerRepo:   repository.NewBuyerRepository(db),
		auditRepo:   repository.NewAuditRepository(db),
	}
	orgRepo := repository.NewOrganizationRepository(db)
	e.invoices = NewInvoiceService(InvoiceDeps{
		Invoices:     e.invoiceRepo,
		Organization: orgRepo,
		Buyers:       e.buyerRepo,
		Audit:        e.auditRepo,
		TxManager:    repository.NewTransactionManager(db),
		FBR:          e.fbr,
		Locks:        e.locks,
		Publisher:    e.publisher,
	})
	e.buyers = NewBuyerService(e.buyerRepo, orgRepo, e.auditRepo, e.fbr, cache.NewMemory(), time.Hour)
	e.statistics = NewStatisticsService(e.invoiceRepo)
	return e
}

func (e *env) countInvoices(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Invoice{}).Count(&n).Error)
	return n
}

func validResponse(irn string) *fbr.Response {
	return &fbr.Response{
		InvoiceNumber:      irn,
		ValidationResponse: fbr.ValidationResponse{StatusCode: fbr.StatusValid, Status: "Valid"},
	}
}
