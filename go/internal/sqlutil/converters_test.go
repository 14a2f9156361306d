package sqlutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNullConversions(t *testing.T) {
	assert.Nil(t, FromSqlStringPtr(ToSqlString(nil)))
	s := "ネコ"
	assert.Equal(t, &s, FromSqlStringPtr(ToSqlString(&s)))

	assert.Nil(t, FromNullUUID(ToNullUUID(nil)))
	id := uuid.New()
	assert.Equal(t, id, *FromNullUUID(ToNullUUID(&id)))
}
