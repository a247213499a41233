package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreach/backend/internal/models"
)

type countingSource struct {
	calls    int
	contacts map[uuid.UUID]models.Contact
}

func (s *countingSource) LookupContact(_ context.Context, userID uuid.UUID, _ *uuid.UUID) (models.Contact, bool, error) {
	s.calls++
	c, ok := s.contacts[userID]
	return c, ok, nil
}

func TestDirectoryCachesHitsAndMisses(t *testing.T) {
	known := uuid.New()
	src := &countingSource{contacts: map[uuid.UUID]models.Contact{
		known: {UserID: known, Name: "Ana", Source: models.ContactVolunteer},
	}}
	d := NewDirectory(src, time.Minute)
	ctx := context.Background()

	c, found, err := d.LookupContact(ctx, known, nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Ana", c.Name)
	_, _, _ = d.LookupContact(ctx, known, nil)
	assert.Equal(t, 1, src.calls)

	unknown := uuid.New()
	_, found, _ = d.LookupContact(ctx, unknown, nil)
	assert.False(t, found)
	_, _, _ = d.LookupContact(ctx, unknown, nil)
	assert.Equal(t, 2, src.calls)

	d.Forget(known)
	_, _, _ = d.LookupContact(ctx, known, nil)
	assert.Equal(t, 3, src.calls)
}

func TestDirectoryWithoutTTL(t *testing.T) {
	id := uuid.New()
	src := &countingSource{contacts: map[uuid.UUID]models.Contact{id: {Name: "M"}}}
	d := NewDirectory(src, 0)
	_, _, _ = d.LookupContact(context.Background(), id, nil)
	_, _, _ = d.LookupContact(context.Background(), id, nil)
	assert.Equal(t, 2, src.calls)
	d.Forget(id)
}
