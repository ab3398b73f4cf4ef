package domain

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidMethod       = errors.New("unsupported payment method")
	ErrInsufficientCredit  = errors.New("insufficient credit")
	ErrNoCreditAccount     = errors.New("no credit account")
	ErrCreditNotEligible   = errors.New("credit account not eligible for paylater")
	ErrOverpaymentRejected = errors.New("payment exceeds remaining balance")
	ErrInvalidState        = errors.New("invalid state")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrOutOfStock          = errors.New("out of stock")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrInvalidCategory     = errors.New("unknown expense category")
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmailTaken          = errors.New("email already registered")
)

// BackendError wraps a failure of the persistence layer with the operation
// that was running.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// Backend returns nil when err is nil, otherwise a *BackendError for op.
// Domain sentinels pass through untouched so callers can still match them.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

var domainErrors = []error{
	ErrInvalidAmount,
	ErrInvalidMethod,
	ErrInsufficientCredit,
	ErrNoCreditAccount,
	ErrCreditNotEligible,
	ErrOverpaymentRejected,
	ErrInvalidState,
	ErrNotFound,
	ErrForbidden,
	ErrOutOfStock,
	ErrEmptyCart,
	ErrDuplicateRequest,
	ErrInvalidCategory,
	ErrInvalidInput,
	ErrEmailTaken,
}

// IsDomain reports whether err is one of the validation or state errors
// above, as opposed to an infrastructure failure.
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
