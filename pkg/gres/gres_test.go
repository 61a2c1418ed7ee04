package gres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJobFindsHost(t *testing.T) {
	list := List{
		{HostIndex: 0, Payload: []byte("gpu:0")},
		{HostIndex: 2, Payload: []byte("gpu:2")},
	}
	payload, err := ExtractJob(list, 2)
	assert.NoError(t, err)
	assert.Equal(t, []byte("gpu:2"), payload)
}

func TestExtractStepMissingHost(t *testing.T) {
	list := List{{HostIndex: 0, Payload: []byte("gpu:0")}}
	_, err := ExtractStep(list, 5)
	assert.ErrorIs(t, err, ErrMissing)
}
