package transport

type CreateOrderRequest struct {
	CustomerID     uint   `json:"customer_id"`
	DeliveryMethod string `json:"delivery_method"`
}

type AddItemRequest struct {
	ProductID       uint   `json:"product_id"`
	Size            string `json:"size"`
	Color           string `json:"color"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	GiftDescription string `json:"gift_description"`
}

type SetDeliveryRequest struct {
	DeliveryMethod string `json:"delivery_method"`
	Shipping       int64  `json:"shipping"`
	DeliveryPeriod string `json:"delivery_period"`
	DeliveryNotes  string `json:"delivery_notes"`
}

type DiscountRequest struct {
	Discount int64 `json:"discount"`
}

type RevertRequest struct {
	TargetStatus string `json:"target_status"`
	Reason       string `json:"reason"`
}

type AutomaticPaymentRequest struct {
	Method string `json:"method"`
}

type ManualPaymentRequest struct {
	Method   string `json:"method"`
	ProofURL string `json:"proof_url"`
	Notes    string `json:"notes"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason"`
}

type PendingDataRequest struct {
	Reason string `json:"reason"`
}

type ChargeRequest struct {
	Channel string `json:"channel"`
}

type ReduceQuantityRequest struct {
	NewQuantity int `json:"new_quantity"`
}

type ConfirmRemovedRequest struct {
	Count int `json:"count"`
}

type ReallocateRequest struct {
	Quantity           int    `json:"quantity"`
	DestinationOrderID uint   `json:"destination_order_id"`
	DestinationHandle  string `json:"destination_handle"`
}

type ResolveReallocationRequest struct {
	RemovedConfirmed bool `json:"removed_confirmed"`
	PlacedConfirmed  bool `json:"placed_confirmed"`
}

type LabelRequest struct {
	LabelURL     string `json:"label_url"`
	TrackingCode string `json:"tracking_code"`
}

type BagStatusResponse struct {
	OrderID   uint   `json:"order_id"`
	BagStatus string `json:"bag_status"`
}

type AssignBagsResponse struct {
	EventID  uint `json:"event_id"`
	Assigned int  `json:"assigned"`
}
