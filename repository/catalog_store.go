package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound                 = errors.New("record not found")
	ErrDuplicatePaymentRef      = errors.New("an order already exists for this payment intent")
	ErrDuplicateOrderIdentifier = errors.New("order or tracking number already taken")
	ErrDuplicateUser            = errors.New("user with this email or phone already exists")
)

const uniqueViolation = "23505"

// Unique index names as declared on the models.
const (
	constraintOrdersPaymentIntent   = "ux_orders_payment_intent"
	constraintPaymentsPaymentIntent = "ux_payments_payment_intent"
	constraintOrdersOrderNumber     = "ux_orders_order_number"
	constraintOrdersTrackingNumber  = "ux_orders_tracking_number"
	constraintUsersEmail            = "ux_users_email"
	constraintUsersPhone            = "ux_users_phone"
)

// CatalogStore is the slice of the shared catalog database the payment
// pipeline reads and writes.
type CatalogStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	FindProductByName(ctx context.Context, name string) (*models.Product, error)

	FindOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error)
	LockOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error)
	GetOrderWithDetails(ctx context.Context, ref string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, orderStatus, paymentStatus string) error
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status string) error

	// WithinTransaction runs fn against a store bound to one database
	// transaction. Any error from fn rolls everything back.
	WithinTransaction(ctx context.Context, fn func(tx CatalogStore) error) error
}

// GormCatalogStore implements CatalogStore using GORM.
type GormCatalogStore struct {
	db *gorm.DB
}

// NewGormCatalogStore creates a new GormCatalogStore.
func NewGormCatalogStore(db *gorm.DB) CatalogStore {
	return &GormCatalogStore{db: db}
}

// FindUserByEmail matches case-insensitively; catalog users may carry the
// email as their identity provider spelled it. The oldest match wins.
func (r *GormCatalogStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at ASC").
		First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *GormCatalogStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// FindProductByName matches the catalog by exact name. When names collide
// the oldest product wins.
func (r *GormCatalogStore) FindProductByName(ctx context.Context, name string) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at ASC").
		First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *GormCatalogStore) FindOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", ref).
		First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// LockOrderByPaymentRef reads the order with a row lock. Only meaningful
// inside WithinTransaction.
func (r *GormCatalogStore) LockOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_payment_intent_id = ?", ref).
		First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *GormCatalogStore) GetOrderWithDetails(ctx context.Context, ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Preload("Payment").
		Where("stripe_payment_intent_id = ?", ref).
		First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *GormCatalogStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error)
}

func (r *GormCatalogStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *GormCatalogStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *GormCatalogStore) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, orderStatus, paymentStatus string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"order_status":   orderStatus,
			"payment_status": paymentStatus,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePaymentStatus updates every payment row of the order. A missing
// payment row is not an error.
func (r *GormCatalogStore) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	return translate(r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error)
}

func (r *GormCatalogStore) WithinTransaction(ctx context.Context, fn func(tx CatalogStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormCatalogStore{db: tx})
	})
}

// translate maps driver errors onto the package sentinels. Unique
// violations are told apart by constraint name.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case constraintOrdersPaymentIntent, constraintPaymentsPaymentIntent:
		return ErrDuplicatePaymentRef
	case constraintOrdersOrderNumber, constraintOrdersTrackingNumber:
		return ErrDuplicateOrderIdentifier
	case constraintUsersEmail, constraintUsersPhone:
		return ErrDuplicateUser
	default:
		return err
	}
}
