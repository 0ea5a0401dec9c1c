package models

import "time"

// Rating is a single observed user-movie rating on the configured
// discrete scale (0.5-5.0 in half-point steps by default).
type Rating struct {
	UserID    int64     `json:"user_id"`
	MovieID   int64     `json:"movie_id"`
	Rating    float64   `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// Movie is an immutable catalog entry. Genres are the categorical tags
// attached at load time; free-text tags arrive separately as Tag rows.
type Movie struct {
	MovieID int64    `json:"movie_id"`
	Title   string   `json:"title"`
	Genres  []string `json:"genres"`
}

// Tag is a free-text annotation a user attached to a movie.
type Tag struct {
	UserID    int64     `json:"user_id"`
	MovieID   int64     `json:"movie_id"`
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
}
