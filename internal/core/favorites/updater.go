package favorites

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/store"
)

// minTimeDelta is the smallest progress change worth a write when the URL
// did not change.
const minTimeDelta = 2.0

// Progress is one playback position report from the top frame.
type Progress struct {
	Series   string
	Episode  string
	URL      string
	Time     float64
	Duration float64
}

// Updater writes progress back into existing entries. It never creates one.
type Updater struct {
	Store store.Store
	Now   func() time.Time
	Log   zerolog.Logger
}

// Update merges p into the entry named p.Series. It reports whether a write
// happened.
func (u *Updater) Update(ctx context.Context, p Progress) (bool, error) {
	lib, err := Load(ctx, u.Store)
	if err != nil {
		return false, err
	}
	e, ok := lib[p.Series]
	if !ok {
		return false, nil
	}
	if e.URL == p.URL && math.Abs(e.Time-p.Time) < minTimeDelta {
		return false, nil
	}

	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Episode = p.Episode
	e.URL = p.URL
	e.Time = p.Time
	e.Duration = p.Duration
	e.Timestamp = now().UnixMilli()
	lib[p.Series] = e

	if err := Save(ctx, u.Store, lib); err != nil {
		return false, err
	}
	u.Log.Debug().Str("series", p.Series).Str("episode", p.Episode).Float64("time", p.Time).Msg("favorite progress saved")
	return true, nil
}
