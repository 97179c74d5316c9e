package service

import "errors"

// Pipeline error codes. The error text is the wire-level code that API
// handlers return to callers.
var (
	ErrInvalidDomain           = errors.New("invalid_domain")
	ErrInsufficientData        = errors.New("insufficient_data")
	ErrMalformedParserResponse = errors.New("malformed_parser_response")
	ErrUnsupportedUnit         = errors.New("unsupported_unit")
	ErrFoodNotFound            = errors.New("food_not_found")
	ErrNoCalorieData           = errors.New("no_calorie_data")
	ErrLowSimilarityMatch      = errors.New("low_similarity_match")

	ErrMissingParserAPIKey = errors.New("missing_parser_api_key")
	ErrParserRequestFailed = errors.New("parser_request_failed")
	ErrParserQuotaExceeded = errors.New("parser_quota_exceeded")

	ErrMissingUSDAAPIKey = errors.New("missing_usda_api_key")
	ErrUSDARequestFailed = errors.New("usda_request_failed")
)
