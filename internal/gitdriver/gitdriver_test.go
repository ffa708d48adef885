package gitdriver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

func TestClassify_Transient(t *testing.T) {
	assert.Equal(t, errs.KindGitTransient, classify("fatal: unable to access: Connection timed out", errors.New("exit 128")))
	assert.Equal(t, errs.KindGitTransient, classify("fatal: Could not resolve host: example.com", errors.New("exit 128")))
}

func TestClassify_Permanent(t *testing.T) {
	assert.Equal(t, errs.KindGitPermanent, classify("fatal: Authentication failed for 'https://example.com'", errors.New("exit 128")))
	assert.Equal(t, errs.KindGitPermanent, classify("fatal: couldn't find remote ref refs/tags/v9.9.9", errors.New("exit 128")))
}

func TestDefaultJitter_AddsPositiveNoise(t *testing.T) {
	base := DefaultRetry.InitialDelay
	jittered := defaultJitter(base)
	assert.Greater(t, jittered, base)
}
