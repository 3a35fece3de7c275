package models

import "time"

// CartItem stores one course a student intends to buy, together with an
// optionally applied coupon code. The applied code is the durable record
// of a verified discount; it is re-validated when the cart is priced.
type CartItem struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CouponCode *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	AddedAt    time.Time `db:"added_at" json:"added_at"`
}

// CartItemDetail enriches a cart item with course data and the effective
// price after any still-valid coupon is applied.
type CartItemDetail struct {
	CartItem
	CourseTitle    string  `db:"course_title" json:"course_title"`
	CourseImageURL string  `db:"course_image_url" json:"course_image_url"`
	Price          float64 `db:"price" json:"price"`
	DiscountPct    int     `db:"-" json:"discount_pct"`
	EffectivePrice float64 `db:"-" json:"effective_price"`
}
