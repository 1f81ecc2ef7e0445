package itinerary

// Error codes carried by pkg/errors.AppError values returned from this package.
const (
	CodeInvalidCoordinate = "invalid_coordinate"
	CodeInvalidWindow     = "invalid_window"
	CodeUnknownEditType   = "unknown_edit_type"
	CodeSupplierFailure   = "supplier_failure"
	CodeInvalidInput      = "invalid_input"
)
