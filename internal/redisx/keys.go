package redisx

import "time"

const (
	// Cart per user: hash cart:{user_id} -> {product_id: quantity}
	KeyCart = "cart:%s"

	// Idempotent submissions: idem:{scope}:{user_id}:{key} -> resource id
	KeyIdempotency = "idem:%s:%s:%s"
)

var (
	TTLCart        = 7 * 24 * time.Hour
	TTLIdempotency = 24 * time.Hour
	// TTLInFlight bounds how long a crashed request can block its key.
	TTLInFlight = 30 * time.Second
)
