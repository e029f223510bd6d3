package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKey_Deterministic(t *testing.T) {
	k1 := BuildKey(bucketVideoList, "video_list", "abc123")
	k2 := BuildKey(bucketVideoList, "video_list", "abc123")

	assert.Equal(t, k1, k2)
	assert.Equal(t, k1.String(), k2.String())
	assert.Equal(t, "cache_video_list:video_list/abc123", k1.String())
}

func TestBuildKey_NoAliasing(t *testing.T) {
	args := []string{
		"abc123", "abc1234", "ABC123", "80057281", "80057281 ",
		"a/b", "a%2Fb", "a%252Fb", "a:b", "a b", "a+b",
		"queue", "queue/", "/queue", "\u00fc", "u\u0308",
	}

	seen := make(map[string]string)
	for _, arg := range args {
		k := BuildKey(bucketVideoList, "video_list", arg)
		if prev, dup := seen[k.String()]; dup {
			t.Fatalf("args %q and %q both map to %q", prev, arg, k)
		}
		seen[k.String()] = arg
	}
}

func TestBuildKey_OperationAndArgBoundary(t *testing.T) {
	// Moving a separator between operation and argument must change the key
	k1 := BuildKey(bucketCommon, "list/id", "queue")
	k2 := BuildKey(bucketCommon, "list", "id/queue")
	assert.NotEqual(t, k1, k2)
}

func TestFixedKey_DistinctFromBuiltKeys(t *testing.T) {
	fixed := FixedKey(bucketCommon, "root_lists/x")
	built := BuildKey(bucketCommon, "root_lists", "x")

	assert.NotEqual(t, fixed.String(), built.String())
	assert.Equal(t, "cache_common:root_lists", FixedKey(bucketCommon, "root_lists").String())
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr error
	}{
		{"valid", BuildKey("b", "op", "arg"), nil},
		{"empty bucket", Key{ID: "x"}, ErrInvalidKey},
		{"empty id", Key{Bucket: "b"}, ErrInvalidKey},
		{"whitespace id", Key{Bucket: "b", ID: "   "}, ErrInvalidKey},
		{"colon in bucket", Key{Bucket: "a:b", ID: "x"}, ErrInvalidKey},
		{"newline in id", Key{Bucket: "b", ID: "x\ny"}, ErrInvalidKey},
		{"too long", Key{Bucket: "b", ID: strings.Repeat("x", MaxKeyLength)}, ErrKeyTooLong},
		{"max length exactly", Key{Bucket: "b", ID: strings.Repeat("x", MaxKeyLength-2)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseKey(t *testing.T) {
	k := BuildKey(bucketCommon, "list_id_for_type", "queue")

	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParseKey("no-bucket")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
