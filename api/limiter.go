package api

import "learn.windowlimiter/types"

// Limiter is the admission controller returned by the factories.
type Limiter = types.AdmissionController
