package metadata

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Date `json:"a"`
		B Date `json:"b"`
		C Date `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2004-11-16","b":null,"c":""}`), &v))
	assert.Equal(t, "2004-11-16", v.A.Format("2006-01-02"))
	assert.True(t, v.B.IsZero())
	assert.True(t, v.C.IsZero())

	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"16/11/2004"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20041116`), &d))
}

func TestDate_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = json.Marshal(mustDate("2004-11-16"))
	require.NoError(t, err)
	assert.Equal(t, `"2004-11-16"`, string(b))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(opGet, nil))

	kinded := &Error{Op: "inner", Kind: ErrNotFound}
	assert.Same(t, kinded, classify(opSearch, kinded).(*Error))

	err := classify(opGet, errors.New("disk I/O error"))
	assert.ErrorIs(t, err, ErrInternal)
	assert.EqualError(t, err, "get game: internal error: disk I/O error")

	assert.EqualError(t, invalidArgument(opGet, "id must be positive"),
		"get game: invalid argument: id must be positive")
}
