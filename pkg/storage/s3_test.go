package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageType(t *testing.T) {
	assert.True(t, ValidateImageType("image/png", "x.bin"))
	assert.True(t, ValidateImageType("", "me.JPEG"))
	assert.False(t, ValidateImageType("application/pdf", "cv.pdf"))
	assert.False(t, ValidateImageType("", "noext"))
}

func TestKeys(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "avatars/u1/1700000000-me.png", AvatarKey("u1", "../../me.png", now))
	assert.Equal(t, "logos/o1/1700000000-logo.webp", LogoKey("o1", "logo.webp", now))
	assert.Equal(t, "exports/o1/j1.csv", ExportKey("o1", "j1", "csv"))
	assert.Equal(t, "image/webp", ContentTypeForFilename("logo.WEBP"))
	assert.Equal(t, "application/octet-stream", ContentTypeForFilename("x.exe"))
}

func TestPresignExpireDefault(t *testing.T) {
	assert.Equal(t, 15*time.Minute, (&S3{}).PresignExpire())
	assert.Equal(t, 5*time.Minute, (&S3{cfg: S3Config{PresignExpireMinutes: 5}}).PresignExpire())
}
