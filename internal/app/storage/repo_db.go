package storage

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/commission"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
)

var schema = `
CREATE TABLE IF NOT EXISTS users(
	user_id			SERIAL PRIMARY KEY,
	login			TEXT NOT NULL UNIQUE,
	password_hash	VARCHAR(64) NOT NULL,
	is_admin		BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS categories(
	category_id		SERIAL PRIMARY KEY,
	slug			TEXT NOT NULL UNIQUE,
	name			TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resources(
	resource_id		SERIAL PRIMARY KEY,
	slug			TEXT NOT NULL UNIQUE,
	name			TEXT NOT NULL,
	description		TEXT NOT NULL DEFAULT '',
	url				TEXT NOT NULL DEFAULT '',
	category_id		INTEGER NOT NULL REFERENCES categories(category_id),
	author_id		INTEGER REFERENCES users(user_id),
	price			BIGINT NOT NULL DEFAULT 0,
	currency		VARCHAR(8) NOT NULL DEFAULT 'USD',
	sales_count		BIGINT NOT NULL DEFAULT 0,
	featured_until	TIMESTAMP WITH TIME ZONE,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchases(
	purchase_id			SERIAL PRIMARY KEY,
	resource_id			INTEGER NOT NULL REFERENCES resources(resource_id),
	buyer_id			INTEGER NOT NULL,
	creator_id			INTEGER NOT NULL,
	amount_total		BIGINT NOT NULL,
	creator_earnings	BIGINT NOT NULL,
	platform_fee		BIGINT NOT NULL,
	creator_percent		BIGINT NOT NULL,
	platform_percent	BIGINT NOT NULL,
	currency			VARCHAR(8) NOT NULL,
	payment_method		VARCHAR(16) NOT NULL,
	external_order_id	TEXT NOT NULL DEFAULT '',
	external_payment_id	TEXT NOT NULL DEFAULT '',
	status				VARCHAR(10) NOT NULL,
	completed_at		TIMESTAMP WITH TIME ZONE
);

CREATE UNIQUE INDEX IF NOT EXISTS purchases_payment_uniq
	ON purchases (payment_method, external_payment_id)
	WHERE external_payment_id <> '';

CREATE TABLE IF NOT EXISTS gateway_orders(
	external_order_id	TEXT PRIMARY KEY,
	resource_id			INTEGER NOT NULL REFERENCES resources(resource_id),
	payment_method		VARCHAR(16) NOT NULL,
	kind				VARCHAR(10) NOT NULL,
	created_at			TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payout_requests(
	payout_id			SERIAL PRIMARY KEY,
	creator_id			INTEGER NOT NULL,
	amount				BIGINT NOT NULL,
	currency			VARCHAR(8) NOT NULL,
	payment_method		VARCHAR(16) NOT NULL,
	account_details		TEXT NOT NULL,
	status				VARCHAR(10) NOT NULL DEFAULT 'pending',
	admin_id			INTEGER,
	rejection_reason	TEXT NOT NULL DEFAULT '',
	processed_at		TIMESTAMP WITH TIME ZONE,
	created_at			TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

INSERT INTO categories (slug, name) VALUES
	('code-assistants', 'Code Assistants'),
	('agents', 'Agent Frameworks'),
	('model-apis', 'Model APIs'),
	('vector-databases', 'Vector Databases'),
	('evals', 'Evals & Testing'),
	('prompt-tools', 'Prompt Tools')
ON CONFLICT (slug) DO NOTHING;`

const selectResourceColumns = `
	r.resource_id, r.slug, r.name, r.description, r.url, r.category_id,
	COALESCE(r.author_id, 0) AS author_id, r.price, r.currency, r.sales_count,
	COALESCE(r.featured_until::text, '') AS featured_until, r.created_at::text AS created_at`

type RepoDB struct {
	db *sqlx.DB
}

func NewRepoDB(databaseURI string) (*RepoDB, error) {
	db, err := sqlx.Connect("pgx", databaseURI)
	if err != nil {
		return nil, err
	}

	db.MustExec(schema)

	return &RepoDB{db: db}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code)
}

func (r *RepoDB) CreateUser(login string, passwordHash string) (string, error) {
	var userID string
	querySaveUser := `INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING user_id::text;`
	err := r.db.Get(&userID, querySaveUser, login, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrLoginExists
		}
		return "", err
	}

	return userID, nil
}

func (r *RepoDB) AuthUser(login string, passwordHash string) (string, error) {
	var userID string
	queryAuthUser := `SELECT user_id::text FROM users WHERE login = ($1) AND password_hash = ($2)`
	err := r.db.Get(&userID, queryAuthUser, login, passwordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	return userID, nil
}

func (r *RepoDB) IsAdmin(userID string) (bool, error) {
	var isAdmin bool
	err := r.db.Get(&isAdmin, `SELECT is_admin FROM users WHERE user_id = ($1)`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return isAdmin, nil
}

func (r *RepoDB) GetCategories() ([]entity.Category, error) {
	var categories []entity.Category
	queryGetCategories := `SELECT category_id, slug, name FROM categories ORDER BY name ASC`
	if err := r.db.Select(&categories, queryGetCategories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *RepoDB) ListResources(f ResourceFilter) ([]entity.Resource, error) {
	var resources []entity.Resource
	queryListResources := `
		SELECT` + selectResourceColumns + `
		FROM resources r
		JOIN categories c ON c.category_id = r.category_id
		WHERE ($1 = '' OR c.slug = $1)
			AND ($2 = '' OR r.name ILIKE '%'||$2||'%' OR r.description ILIKE '%'||$2||'%')
			AND (NOT $3 OR (r.featured_until IS NOT NULL AND r.featured_until > now()))
		ORDER BY (r.featured_until IS NOT NULL AND r.featured_until > now()) DESC, r.created_at DESC`

	err := r.db.Select(&resources, queryListResources, f.CategorySlug, f.Query, f.FeaturedOnly)
	if err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *RepoDB) GetResourceBySlug(slug string) (entity.Resource, error) {
	var resource entity.Resource
	queryGetResource := `SELECT` + selectResourceColumns + ` FROM resources r WHERE r.slug = ($1)`
	err := r.db.Get(&resource, queryGetResource, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resource, ErrNotFound
		}
		return resource, err
	}
	return resource, nil
}

func (r *RepoDB) CreateResource(res entity.Resource) (int64, error) {
	var resourceID int64
	querySaveResource := `
		INSERT INTO resources (slug, name, description, url, category_id, author_id, price, currency)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), $7, $8)
		RETURNING resource_id`
	err := r.db.Get(&resourceID, querySaveResource,
		res.Slug, res.Name, res.Description, res.URL, res.CategoryID, res.AuthorID, res.Price, res.Currency)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrSlugExists
		}
		return 0, err
	}
	return resourceID, nil
}

func (r *RepoDB) SetResourceFeatured(resourceID int64, until time.Time) error {
	res, err := r.db.Exec(`UPDATE resources SET featured_until = ($1) WHERE resource_id = ($2)`, until, resourceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoDB) SaveGatewayOrder(o GatewayOrder) error {
	querySaveOrder := `
		INSERT INTO gateway_orders (external_order_id, resource_id, payment_method, kind)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(querySaveOrder, o.ExternalOrderID, o.ResourceID, o.PaymentMethod, o.Kind)
	return err
}

func (r *RepoDB) GetGatewayOrder(externalOrderID string) (GatewayOrder, error) {
	var order GatewayOrder
	queryGetOrder := `
		SELECT external_order_id, resource_id, payment_method, kind
		FROM gateway_orders WHERE external_order_id = ($1)`
	err := r.db.Get(&order, queryGetOrder, externalOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order, ErrNotFound
		}
		return order, err
	}
	return order, nil
}

// RecordPurchase increments the resource's sales count and writes the
// purchase in one transaction. The commission tier comes from the count
// value the increment returns, so two concurrent sales can never both see
// the same pre-sale count. A replayed payment id trips the purchases
// unique constraint and rolls the increment back with it.
func (r *RepoDB) RecordPurchase(in PurchaseInput) (entity.Purchase, error) {
	var purchase entity.Purchase

	queryIncrementSales := `UPDATE resources SET sales_count = sales_count + 1 WHERE resource_id = ($1) RETURNING sales_count, author_id`
	querySavePurchase := `
		INSERT INTO purchases (resource_id, buyer_id, creator_id, amount_total, creator_earnings,
			platform_fee, creator_percent, platform_percent, currency, payment_method,
			external_order_id, external_payment_id, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING purchase_id`

	tx, err := r.db.Begin()
	if err != nil {
		return purchase, err
	}
	defer func(tx *sql.Tx) {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Logger.Err(err).Msg("purchase tx rollback")
		}
	}(tx)

	var salesCount int64
	var authorID sql.NullInt64
	err = tx.QueryRow(queryIncrementSales, in.ResourceID).Scan(&salesCount, &authorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return purchase, ErrNotFound
		}
		return purchase, err
	}
	if !authorID.Valid {
		return purchase, ErrNoCreator
	}

	split := commission.Calculate(salesCount-1, in.Amount)
	completedAt := time.Now().Truncate(time.Second)

	var purchaseID int64
	err = tx.QueryRow(querySavePurchase,
		in.ResourceID, in.BuyerID, authorID.Int64, in.Amount, split.CreatorEarnings,
		split.PlatformFee, split.CreatorPercent, split.PlatformPercent, in.Currency,
		in.PaymentMethod, in.ExternalOrderID, in.ExternalPaymentID, PurchaseCompleted, completedAt,
	).Scan(&purchaseID)
	if err != nil {
		if isUniqueViolation(err) {
			return purchase, ErrPaymentRecorded
		}
		return purchase, err
	}

	if err := tx.Commit(); err != nil {
		return purchase, err
	}

	buyerID, _ := strconv.ParseInt(in.BuyerID, 10, 64)
	purchase = entity.Purchase{
		PurchaseID:        purchaseID,
		ResourceID:        in.ResourceID,
		BuyerID:           buyerID,
		CreatorID:         authorID.Int64,
		AmountTotal:       in.Amount,
		CreatorEarnings:   split.CreatorEarnings,
		PlatformFee:       split.PlatformFee,
		CreatorPercent:    split.CreatorPercent,
		PlatformPercent:   split.PlatformPercent,
		Currency:          in.Currency,
		PaymentMethod:     in.PaymentMethod,
		ExternalOrderID:   in.ExternalOrderID,
		ExternalPaymentID: in.ExternalPaymentID,
		Status:            PurchaseCompleted,
		CompletedAt:       completedAt.Format(time.RFC3339),
	}
	return purchase, nil
}

func (r *RepoDB) GetEarnings(creatorID string) (entity.Earnings, error) {
	var earnings entity.Earnings
	queryGetEarnings := `
		SELECT
			COALESCE(SUM(creator_earnings), 0) AS total_earnings,
			COALESCE(SUM(CASE WHEN creator_percent = 100 THEN creator_earnings ELSE 0 END), 0) AS first_two_earnings,
			COALESCE(SUM(CASE WHEN creator_percent <> 100 THEN creator_earnings ELSE 0 END), 0) AS subsequent_earnings,
			COUNT(*) AS sales_count
		FROM purchases
		WHERE creator_id = ($1) AND status = ($2)`
	if err := r.db.Get(&earnings, queryGetEarnings, creatorID, PurchaseCompleted); err != nil {
		return earnings, err
	}

	var approved int64
	queryApprovedPayouts := `SELECT COALESCE(SUM(amount), 0) FROM payout_requests WHERE creator_id = ($1) AND status = ($2)`
	if err := r.db.Get(&approved, queryApprovedPayouts, creatorID, PayoutApproved); err != nil {
		return earnings, err
	}

	earnings.PendingBalance = earnings.TotalEarnings - approved
	return earnings, nil
}

func (r *RepoDB) GetCreatorPurchases(creatorID string) ([]entity.Purchase, error) {
	var purchases []entity.Purchase
	queryGetPurchases := `
		SELECT purchase_id, resource_id, buyer_id, creator_id, amount_total, creator_earnings,
			platform_fee, creator_percent, platform_percent, currency, payment_method,
			external_order_id, external_payment_id, status,
			COALESCE(completed_at::text, '') AS completed_at
		FROM purchases
		WHERE creator_id = ($1) AND status = ($2)
		ORDER BY completed_at DESC`
	if err := r.db.Select(&purchases, queryGetPurchases, creatorID, PurchaseCompleted); err != nil {
		return nil, err
	}
	return purchases, nil
}

// CreatePayoutRequest checks the pending balance inside a transaction so a
// request can never be admitted against a balance that a concurrent
// approval already consumed. Pending requests do not reserve balance.
func (r *RepoDB) CreatePayoutRequest(in PayoutInput) (entity.PayoutRequest, error) {
	var payout entity.PayoutRequest
	if err := in.Validate(); err != nil {
		return payout, err
	}

	queryTotalEarnings := `SELECT COALESCE(SUM(creator_earnings), 0) FROM purchases WHERE creator_id = ($1) AND status = ($2)`
	queryApprovedPayouts := `SELECT COALESCE(SUM(amount), 0) FROM payout_requests WHERE creator_id = ($1) AND status = ($2)`
	querySavePayout := `
		INSERT INTO payout_requests (creator_id, amount, currency, payment_method, account_details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING payout_id, created_at::text`

	tx, err := r.db.Begin()
	if err != nil {
		return payout, err
	}
	defer func(tx *sql.Tx) {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Logger.Err(err).Msg("payout tx rollback")
		}
	}(tx)

	var total, approved int64
	if err := tx.QueryRow(queryTotalEarnings, in.CreatorID, PurchaseCompleted).Scan(&total); err != nil {
		return payout, err
	}
	if err := tx.QueryRow(queryApprovedPayouts, in.CreatorID, PayoutApproved).Scan(&approved); err != nil {
		return payout, err
	}

	pending := total - approved
	if pending < MinPayoutBalance {
		return payout, ErrBelowMinimumBalance
	}
	if in.Amount > pending {
		return payout, ErrInsufficientBalance
	}

	var payoutID int64
	var createdAt string
	err = tx.QueryRow(querySavePayout, in.CreatorID, in.Amount, in.Currency, in.PaymentMethod, in.AccountDetails).
		Scan(&payoutID, &createdAt)
	if err != nil {
		return payout, err
	}

	if err := tx.Commit(); err != nil {
		return payout, err
	}

	creatorID, _ := strconv.ParseInt(in.CreatorID, 10, 64)
	payout = entity.PayoutRequest{
		PayoutID:       payoutID,
		CreatorID:      creatorID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		PaymentMethod:  in.PaymentMethod,
		AccountDetails: in.AccountDetails,
		Status:         PayoutPending,
		CreatedAt:      createdAt,
	}
	return payout, nil
}

const selectPayoutColumns = `
	payout_id, creator_id, amount, currency, payment_method, account_details, status,
	COALESCE(admin_id, 0) AS admin_id, rejection_reason,
	COALESCE(processed_at::text, '') AS processed_at, created_at::text AS created_at`

func (r *RepoDB) GetPayoutRequests(creatorID string) ([]entity.PayoutRequest, error) {
	var payouts []entity.PayoutRequest
	queryGetPayouts := `SELECT` + selectPayoutColumns + ` FROM payout_requests WHERE creator_id = ($1) ORDER BY created_at DESC`
	if err := r.db.Select(&payouts, queryGetPayouts, creatorID); err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *RepoDB) ListPayoutRequests(status string) ([]entity.PayoutRequest, error) {
	var payouts []entity.PayoutRequest
	queryListPayouts := `SELECT` + selectPayoutColumns + ` FROM payout_requests WHERE ($1 = '' OR status = $1) ORDER BY created_at ASC`
	if err := r.db.Select(&payouts, queryListPayouts, status); err != nil {
		return nil, err
	}
	return payouts, nil
}

// transitionPayout moves a pending request to a terminal state. The status
// guard in the WHERE clause makes racing admin actions lose cleanly.
func (r *RepoDB) transitionPayout(payoutID int64, adminID string, status string, reason string) error {
	queryTransition := `
		UPDATE payout_requests
		SET status = ($1), admin_id = ($2), rejection_reason = ($3), processed_at = ($4)
		WHERE payout_id = ($5) AND status = ($6)`

	res, err := r.db.Exec(queryTransition, status, adminID, reason, time.Now().Truncate(time.Second), payoutID, PayoutPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current string
	err = r.db.Get(&current, `SELECT status FROM payout_requests WHERE payout_id = ($1)`, payoutID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyProcessed
}

func (r *RepoDB) ApprovePayoutRequest(payoutID int64, adminID string) error {
	return r.transitionPayout(payoutID, adminID, PayoutApproved, "")
}

func (r *RepoDB) RejectPayoutRequest(payoutID int64, adminID string, reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}
	return r.transitionPayout(payoutID, adminID, PayoutRejected, reason)
}

func (r *RepoDB) Close() {
	r.db.Close()
}
