package models

import (
	"time"
)

// Cart-level commercial status.
const (
	CartOpen            = "open"
	CartAwaitingPayment = "awaiting_payment"
	CartPaid            = "paid"
	CartCancelled       = "cancelled"
)

// Operational (fulfillment) status.
const (
	StatusAwaitingPayment  = "awaiting_payment"
	StatusAwaitingResponse = "awaiting_response"
	StatusPaid             = "paid"
	StatusPrepShipping     = "prep_shipping"
	StatusLabelGenerated   = "label_generated"
	StatusPosted           = "posted"
	StatusInTransit        = "in_transit"
	StatusAwaitingPickup   = "awaiting_pickup"
	StatusDelivered        = "delivered"
	StatusPendingData      = "pending_data"
)

// Delivery methods.
const (
	DeliveryPickup  = "pickup"
	DeliveryCourier = "courier"
	DeliveryPostal  = "postal"
)

// Payment review status.
const (
	ReviewNone     = "none"
	ReviewPending  = "pending_review"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Item status.
const (
	ItemReserved  = "reserved"
	ItemConfirmed = "confirmed"
	ItemCancelled = "cancelled"
	ItemRemoved   = "removed"
	ItemExpired   = "expired"
)

// Item separation status.
const (
	SepPending          = "pending"
	SepPacked           = "packed"
	SepCancelled        = "cancelled"
	SepRemovalConfirmed = "removal_confirmed"
)

// Bag-level separation status (derived, never persisted).
const (
	BagPending   = "pending"
	BagPacking   = "packing"
	BagAttention = "attention"
	BagPacked    = "packed"
	BagCancelled = "cancelled"
)

// Attention requirement types.
const (
	AttentionCancellation      = "cancellation"
	AttentionReallocation      = "reallocation"
	AttentionQuantityReduction = "quantity_reduction"
)

// Actor roles.
const (
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Actor is the already-authenticated caller of every mutating operation.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type LiveEvent struct {
	ID        uint       `gorm:"primaryKey"     json:"id"`
	SellerID  uint       `gorm:"index;not null" json:"seller_id"`
	Title     string     `gorm:"not null"       json:"title"`
	StartedAt time.Time  `gorm:"not null"       json:"started_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type Product struct {
	ID    uint   `gorm:"primaryKey"     json:"id"`
	Name  string `gorm:"not null"       json:"name"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
	Price int64  `gorm:"not null"       json:"price"`
	Stock int64  `gorm:"not null"       json:"stock"`
}

// Order is one customer's cart within a live event. The bag is the physical
// packing unit of the same order, identified by BagNumber once assigned.
type Order struct {
	ID         uint  `gorm:"primaryKey"     json:"id"`
	EventID    uint  `gorm:"index;not null" json:"event_id"`
	CustomerID uint  `gorm:"index;not null" json:"customer_id"`
	SellerID   *uint `json:"seller_id,omitempty"`

	CartStatus        string `gorm:"not null;default:open"             json:"cart_status"`
	OperationalStatus string `gorm:"not null;default:awaiting_payment" json:"operational_status"`

	DeliveryMethod string `gorm:"not null;default:pickup" json:"delivery_method"`
	DeliveryPeriod string `json:"delivery_period,omitempty"`
	DeliveryNotes  string `json:"delivery_notes,omitempty"`

	// Money in centavos. Total = Subtotal - Discounts + Shipping, products
	// only; gift lines never contribute.
	Subtotal  int64 `gorm:"not null" json:"subtotal"`
	Discounts int64 `gorm:"not null" json:"discounts"`
	Shipping  int64 `gorm:"not null" json:"shipping"`
	Total     int64 `gorm:"not null" json:"total"`

	// Assigned once per event, monotonically increasing, never reused.
	BagNumber *int `gorm:"index" json:"bag_number,omitempty"`

	PaidMethod          string     `json:"paid_method,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	PaidByActor         *uint      `json:"paid_by_actor,omitempty"`
	ProofURL            string     `json:"proof_url,omitempty"`
	PaymentReviewStatus string     `gorm:"not null;default:none" json:"payment_review_status"`
	RejectionReason     string     `json:"rejection_reason,omitempty"`
	ValidatedAt         *time.Time `json:"validated_at,omitempty"`
	ValidatedByActor    *uint      `json:"validated_by_actor,omitempty"`

	LastChargeAt   *time.Time `json:"last_charge_at,omitempty"`
	ChargeAttempts int        `gorm:"not null;default:0" json:"charge_attempts"`
	ChargeChannel  string     `json:"charge_channel,omitempty"`
	ChargedByActor *uint      `json:"charged_by_actor,omitempty"`

	LabelURL          string     `json:"label_url,omitempty"`
	TrackingCode      string     `json:"tracking_code,omitempty"`
	LabelPrintedAt    *time.Time `json:"label_printed_at,omitempty"`
	NeedsLabelReprint bool       `gorm:"not null;default:false" json:"needs_label_reprint"`

	// Set once when the bag first packs or gets a label; a committed bag
	// never silently cancels.
	Committed bool `gorm:"not null;default:false" json:"committed"`

	// Derived from items, gifts and open requirements; recomputed on read.
	SeparationStatus string `gorm:"-" json:"separation_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`
	Gifts []GiftItem  `json:"gifts,omitempty"`
}

type OrderItem struct {
	ID        uint   `gorm:"primaryKey"                 json:"id"`
	OrderID   uint   `gorm:"index;not null"             json:"order_id"`
	ProductID uint   `gorm:"not null"                   json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `gorm:"not null;check:quantity>0"  json:"quantity"`
	UnitPrice int64  `gorm:"not null"                   json:"unit_price"`

	ItemStatus       string `gorm:"not null;default:reserved" json:"item_status"`
	SeparationStatus string `gorm:"not null;default:pending"  json:"separation_status"`

	// Units that must still be physically taken out of an already-packed
	// bag, and how many of them an operator has confirmed removed.
	PendingRemovalCount   int `gorm:"not null;default:0" json:"pending_removal_count"`
	RemovalConfirmedCount int `gorm:"not null;default:0" json:"removal_confirmed_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GiftItem is a price-zero line tracked apart from products; it follows the
// same packed/pending discipline and gates bag completion.
type GiftItem struct {
	ID               uint   `gorm:"primaryKey"               json:"id"`
	OrderID          uint   `gorm:"index;not null"           json:"order_id"`
	Description      string `gorm:"not null"                 json:"description"`
	Quantity         int    `gorm:"not null;default:1"       json:"quantity"`
	SeparationStatus string `gorm:"not null;default:pending" json:"separation_status"`

	CreatedAt time.Time `json:"created_at"`
}

// AttentionRequirement is one unresolved packing violation. A bag with any
// open requirement cannot be considered packed.
type AttentionRequirement struct {
	ID       uint   `gorm:"primaryKey"     json:"id"`
	Type     string `gorm:"not null"       json:"type"`
	ItemID   uint   `gorm:"index;not null" json:"item_id"`
	Quantity int    `gorm:"not null"       json:"quantity"`

	OriginBagID     uint `gorm:"index;not null" json:"origin_bag_id"`
	OriginBagNumber int  `gorm:"not null"       json:"origin_bag_number"`

	DestinationBagID     *uint  `json:"destination_bag_id,omitempty"`
	DestinationBagNumber *int   `json:"destination_bag_number,omitempty"`
	DestinationHandle    string `json:"destination_handle,omitempty"`

	RemovedFromOriginConfirmed   bool `gorm:"not null;default:false" json:"removed_from_origin_confirmed"`
	PlacedInDestinationConfirmed bool `gorm:"not null;default:false" json:"placed_in_destination_confirmed"`

	ResolvedAt *time.Time `gorm:"index" json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// StatusHistoryEntry is append-only; the audit trail is never mutated.
type StatusHistoryEntry struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `gorm:"not null"       json:"new_status"`
	Note      string    `json:"note,omitempty"`
	ActorID   uint      `json:"actor_id"`
	CreatedAt time.Time `json:"timestamp"`
}

type ChargeLogEntry struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	Channel   string    `gorm:"not null"       json:"channel"`
	ActorID   uint      `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StockEffect marks an order whose paid effects were applied. The unique
// index on OrderID is what makes ApplyPaidEffects idempotent.
type StockEffect struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	OrderID   uint      `gorm:"uniqueIndex;not null" json:"order_id"`
	AppliedAt time.Time `json:"applied_at"`
}
