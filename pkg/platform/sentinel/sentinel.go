package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and engine clients return
// these (optionally wrapped) so services can translate them into domain
// errors at the feature boundary.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: optimistic version check lost a concurrent update
// - ErrExpired: cached entry or session deadline has passed
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: external engine or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
