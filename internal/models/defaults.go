package models

// NotFoundPath is where lookups for unknown keys are redirected.
const NotFoundPath = "/404"

// DefaultSeed returns the links every fresh store starts with.
func DefaultSeed() Snapshot {
	return Snapshot{
		"google": "https://google.com",
	}
}
