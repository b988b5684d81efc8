package httpapi

import "fmt"

var (
	ErrJobNotFound     = fmt.Errorf("job not found")
	ErrInvalidTrigger  = fmt.Errorf("invalid trigger configuration")
	ErrMissingJobID    = fmt.Errorf("job id path parameter required")
	ErrDuplicateJobID  = fmt.Errorf("job id already exists")
)
