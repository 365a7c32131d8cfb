package game

import "errors"

// Client-reportable validation and state errors. The transport layer maps
// them to 4xx/503 responses; check with errors.Is.
var (
	ErrInvalidGuessLength = errors.New("guess must be exactly 5 letters")
	ErrInvalidGuess       = errors.New("guess must contain letters only")
	ErrNoActiveWord       = errors.New("no active word selected")
	ErrNoWordsAvailable   = errors.New("no words available")
	ErrAttemptsExhausted  = errors.New("maximum attempts reached for this word")
	ErrGameCompleted      = errors.New("game already completed")
	ErrGameNotFound       = errors.New("game not found")
	ErrUserOrWordNotFound = errors.New("user or word not found")
	ErrInvalidWord        = errors.New("word must be exactly 5 letters")
	ErrWordExists         = errors.New("word already exists")
	ErrUsernameTaken      = errors.New("username taken")
)
