package stagedcontent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
)

func TestValidate(t *testing.T) {
	ctx := context.Background()
	resolver := stagedcontent.NewResolver(newServedGateway(t))

	newForm := func(fields map[string]any) *stagedcontent.Form {
		form := stagedcontent.NewForm("news", "", stagedcontent.NewStore(resolver), nil)
		form.SetFields(fields)
		return form
	}

	tests := []struct {
		name      string
		rules     stagedcontent.Rules
		form      *stagedcontent.Form
		wantField string
	}{
		{
			name:  "empty rules always pass",
			rules: stagedcontent.Rules{},
			form:  newForm(nil),
		},
		{
			name:      "missing required field",
			rules:     stagedcontent.Rules{RequiredFields: []string{"title"}},
			form:      newForm(nil),
			wantField: "title",
		},
		{
			name:      "blank required field",
			rules:     stagedcontent.Rules{RequiredFields: []string{"title"}},
			form:      newForm(map[string]any{"title": "   "}),
			wantField: "title",
		},
		{
			name:  "present required field",
			rules: stagedcontent.Rules{RequiredFields: []string{"title"}},
			form:  newForm(map[string]any{"title": "Launch"}),
		},
		{
			name:      "missing required selection",
			rules:     stagedcontent.Rules{RequiredSelections: []string{"category_id"}},
			form:      newForm(nil),
			wantField: "category_id",
		},
		{
			name:      "required asset with none staged",
			rules:     stagedcontent.Rules{RequireAsset: true},
			form:      newForm(nil),
			wantField: "images",
		},
		{
			name: "numeric bound violated",
			rules: stagedcontent.Rules{
				NumericBounds: map[string]stagedcontent.Bounds{"salary": {Min: 1, Max: 100}},
			},
			form:      newForm(map[string]any{"salary": 250}),
			wantField: "salary",
		},
		{
			name: "numeric bound satisfied from string input",
			rules: stagedcontent.Rules{
				NumericBounds: map[string]stagedcontent.Bounds{"salary": {Min: 1, Max: 100}},
			},
			form: newForm(map[string]any{"salary": "42.5"}),
		},
		{
			name: "non-numeric value for numeric bound",
			rules: stagedcontent.Rules{
				NumericBounds: map[string]stagedcontent.Bounds{"salary": {Min: 1, Max: 100}},
			},
			form:      newForm(map[string]any{"salary": "lots"}),
			wantField: "salary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate(tt.form)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var validationErr *stagedcontent.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}

	t.Run("required asset satisfied by an existing asset", func(t *testing.T) {
		form := newForm(nil)
		form.Assets.LoadExisting(ctx, []string{"news/1/images/a.png"})

		assert.NoError(t, stagedcontent.Rules{RequireAsset: true}.Validate(form))
	})
}
