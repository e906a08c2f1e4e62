package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduleRequest struct {
	Type string `json:"type" validate:"required,schedule_type"`
	Cron string `json:"cron" validate:"omitempty,cron"`
	Unit string `json:"unit" validate:"omitempty,interval_unit"`
}

func TestValidate_CustomTags(t *testing.T) {
	assert.NoError(t, Validate(&scheduleRequest{Type: "cron", Cron: "0 9 * * 1-5"}))
	assert.NoError(t, Validate(&scheduleRequest{Type: "interval", Unit: "hours"}))

	err := Validate(&scheduleRequest{Type: "weekly", Cron: "0 9 * *", Unit: "weeks"})
	require.Error(t, err)

	fields := map[string]string{}
	for _, e := range FormatErrors(err) {
		fields[e.Field] = e.Message
	}
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "cron")
	assert.Contains(t, fields, "unit")
}

func TestValidateCron_RejectsSixFields(t *testing.T) {
	assert.Error(t, ValidateVar("0 0 9 * * *", "cron"))
	assert.Error(t, ValidateVar("61 9 * * *", "cron"))
	assert.NoError(t, ValidateVar("*/15 * * * *", "cron"))
}
