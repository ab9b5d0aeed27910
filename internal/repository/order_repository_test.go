package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"cakeshop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	// Mirror the migration schema
	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(150) UNIQUE NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'user',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			address VARCHAR(255) NOT NULL,
			phone VARCHAR(15) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS cakes (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			price DECIMAL(5, 2) NOT NULL,
			image_path VARCHAR(500) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			cake_id UUID NOT NULL REFERENCES cakes(id) ON DELETE CASCADE,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			status VARCHAR(10) NOT NULL DEFAULT 'Pending',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func seedUser(t *testing.T, username string) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username + "-" + uuid.NewString()[:8],
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         "user",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, NewUserRepository(testDB).Create(context.Background(), user))
	return user
}

func seedCake(t *testing.T, name, price string) *domain.Cake {
	t.Helper()

	p, err := decimal.NewFromString(price)
	require.NoError(t, err)

	cake := &domain.Cake{
		ID:        uuid.New(),
		Name:      name,
		Price:     p,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, NewCakeRepository(testDB).Create(context.Background(), cake))
	return cake
}

func seedOrder(t *testing.T, repo OrderRepository, userID, cakeID uuid.UUID, quantity int) *domain.Order {
	t.Helper()

	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		CakeID:    cakeID,
		Quantity:  quantity,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestFindPendingIsScopedToOwnerAndStatus(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")
	stranger := seedUser(t, "stranger")
	cake := seedCake(t, "Battenberg", "7.50")
	order := seedOrder(t, repo, owner.ID, cake.ID, 2)

	found, err := repo.FindPending(ctx, order.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, 2, found.Quantity)

	// Another account sees nothing
	_, err = repo.FindPending(ctx, order.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// A nonexistent id sees nothing
	_, err = repo.FindPending(ctx, uuid.New(), owner.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestQuantityMutationsAreOwnerScoped(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")
	stranger := seedUser(t, "stranger")
	cake := seedCake(t, "Fraisier", "9.00")
	order := seedOrder(t, repo, owner.ID, cake.ID, 3)

	assert.ErrorIs(t, repo.IncreaseQuantity(ctx, order.ID, stranger.ID), ErrOrderNotFound)
	assert.ErrorIs(t, repo.DecreaseQuantity(ctx, order.ID, stranger.ID), ErrOrderNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, order.ID, stranger.ID), ErrOrderNotFound)

	require.NoError(t, repo.IncreaseQuantity(ctx, order.ID, owner.ID))
	found, err := repo.FindPending(ctx, order.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, found.Quantity)
}

func TestDecreaseQuantityFloorsAtOne(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")
	cake := seedCake(t, "Madeleine", "2.25")
	order := seedOrder(t, repo, owner.ID, cake.ID, 2)

	require.NoError(t, repo.DecreaseQuantity(ctx, order.ID, owner.ID))

	// At the floor the call succeeds without change
	require.NoError(t, repo.DecreaseQuantity(ctx, order.ID, owner.ID))
	require.NoError(t, repo.DecreaseQuantity(ctx, order.ID, owner.ID))

	found, err := repo.FindPending(ctx, order.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.Quantity)
}

func TestConfirmPendingTransitionsWholeSet(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")
	bystander := seedUser(t, "bystander")
	cakeA := seedCake(t, "Sachertorte", "18.00")
	cakeB := seedCake(t, "Stollen", "12.00")

	first := seedOrder(t, repo, owner.ID, cakeA.ID, 1)
	second := seedOrder(t, repo, owner.ID, cakeB.ID, 3)
	other := seedOrder(t, repo, bystander.ID, cakeA.ID, 5)

	var snapshot []*domain.OrderLine
	confirmed, err := repo.ConfirmPending(ctx, owner.ID, func(lines []*domain.OrderLine) error {
		snapshot = lines
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, confirmed)

	// The callback saw the full pending set with cake details joined in
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Sachertorte", snapshot[0].CakeName)
	assert.True(t, snapshot[0].CakePrice.Equal(decimal.RequireFromString("18.00")))

	// Both of the owner's orders are now terminal
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		_, err := repo.FindPending(ctx, id, owner.ID)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.ErrorIs(t, repo.IncreaseQuantity(ctx, id, owner.ID), ErrOrderNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, id, owner.ID), ErrOrderNotFound)
	}

	// The bystander's order is untouched
	found, err := repo.FindPending(ctx, other.ID, bystander.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, found.Status)
}

func TestConfirmPendingRollsBackOnNotifyFailure(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")
	cake := seedCake(t, "Galette", "6.00")
	order := seedOrder(t, repo, owner.ID, cake.ID, 2)

	sendErr := errors.New("smtp: connection refused")
	confirmed, err := repo.ConfirmPending(ctx, owner.ID, func(lines []*domain.OrderLine) error {
		return sendErr
	})
	assert.ErrorIs(t, err, sendErr)
	assert.Zero(t, confirmed)

	// The order is still pending and mutable
	found, err := repo.FindPending(ctx, order.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, found.Status)
	require.NoError(t, repo.IncreaseQuantity(ctx, order.ID, owner.ID))
}

func TestConfirmPendingWithEmptySetSkipsNotify(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")

	notified := false
	confirmed, err := repo.ConfirmPending(ctx, owner.ID, func(lines []*domain.OrderLine) error {
		notified = true
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, confirmed)
	assert.False(t, notified)
}

func TestListByUserIncludesAllStatuses(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "owner")
	cake := seedCake(t, "Tiramisu", "8.50")

	seedOrder(t, repo, owner.ID, cake.ID, 1)
	_, err := repo.ConfirmPending(ctx, owner.ID, func([]*domain.OrderLine) error { return nil })
	require.NoError(t, err)
	seedOrder(t, repo, owner.ID, cake.ID, 2)

	pending, err := repo.ListPendingLines(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := repo.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListAllFiltersByStatusAndSearch(t *testing.T) {
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	owner := seedUser(t, "filterowner")
	cake := seedCake(t, "Kransekake-Special", "19.99")

	seedOrder(t, repo, owner.ID, cake.ID, 1)
	seedOrder(t, repo, owner.ID, cake.ID, 2)

	pending := domain.OrderStatusPending
	lines, total, err := repo.ListAll(ctx, &pending, "kransekake", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, domain.OrderStatusPending, line.Status)
		assert.Equal(t, "Kransekake-Special", line.CakeName)
	}

	confirmedStatus := domain.OrderStatusConfirmed
	_, total, err = repo.ListAll(ctx, &confirmedStatus, "kransekake", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	// Search also matches on username
	_, total, err = repo.ListAll(ctx, nil, owner.Username, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
