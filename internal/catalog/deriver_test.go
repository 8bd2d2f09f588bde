package catalog

import (
	"testing"

	"oatty/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listAppsAndAddonsDoc = `
openapi: "3.0.0"
paths:
  /apps:
    get:
      summary: List apps
      responses:
        "200":
          content:
            application/json:
              schema:
                type: array
                items:
                  type: object
                  properties:
                    app_id: {type: string}
                    name: {type: string}
  /apps/{app}/addons:
    get:
      summary: List add-ons for app
      responses:
        "200":
          content:
            application/json:
              schema:
                type: array
                items:
                  type: object
                  properties:
                    addon_id: {type: string}
`

func findSpec(specs []api.CommandSpec, group, name string) *api.CommandSpec {
	for i := range specs {
		if specs[i].Group == group && specs[i].Name == name {
			return &specs[i]
		}
	}
	return nil
}

// scenario 1 of spec section 8: GET /apps and GET /apps/{app}/addons derive
// (apps, list) and (apps, addons:list), the latter with one positional and
// a provider onto (apps, list) with empty binds.
func TestDeriveManifestScenario1(t *testing.T) {
	d := NewDeriver()
	specs, warnings, err := d.Derive("heroku", []byte(listAppsAndAddonsDoc))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, specs, 2)

	list := findSpec(specs, "apps", "list")
	addonsList := findSpec(specs, "apps", "addons:list")
	require.NotNil(t, list)
	require.NotNil(t, addonsList)

	assert.Empty(t, list.Positionals)

	require.Len(t, addonsList.Positionals, 1)
	assert.Equal(t, "app", addonsList.Positionals[0].Name)
	require.NotNil(t, addonsList.Positionals[0].Provider)
	assert.Equal(t, "apps list", addonsList.Positionals[0].Provider.ProviderRef)
	assert.Empty(t, addonsList.Positionals[0].Provider.Binds)
}

const addonConfigDoc = listAppsAndAddonsDoc + `
  /apps/{app}/addons/{addon}/config:
    get:
      summary: Get add-on config
      responses:
        "200":
          content:
            application/json:
              schema:
                type: object
                properties:
                  key: {type: string}
`

// scenario 2 of spec section 8: the deeper nested operation binds its
// "addon" positional to (apps, addons:list) with bind {provider_key: "app",
// from: "app"}.
func TestDeriveManifestScenario2ArgumentBinding(t *testing.T) {
	d := NewDeriver()
	specs, _, err := d.Derive("heroku", []byte(addonConfigDoc))
	require.NoError(t, err)

	configCmd := findSpec(specs, "apps", "addons:config:list")
	require.NotNil(t, configCmd)
	require.Len(t, configCmd.Positionals, 2)
	assert.Equal(t, "app", configCmd.Positionals[0].Name)
	assert.Equal(t, "addon", configCmd.Positionals[1].Name)

	addonProvider := configCmd.Positionals[1].Provider
	require.NotNil(t, addonProvider)
	assert.Equal(t, "apps addons:list", addonProvider.ProviderRef)
	require.Len(t, addonProvider.Binds, 1)
	assert.Equal(t, "app", addonProvider.Binds[0].ProviderKey)
	assert.Equal(t, "app", addonProvider.Binds[0].From)
}

func TestDeriveMethodToActionTokenMapping(t *testing.T) {
	doc := `
paths:
  /apps:
    post:
      summary: Create app
  /apps/{app}:
    get:
      summary: Get app
    put:
      summary: Update app
    delete:
      summary: Destroy app
`
	d := NewDeriver()
	specs, _, err := d.Derive("heroku", []byte(doc))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range specs {
		names[s.Name] = true
	}
	assert.True(t, names["create"])
	assert.True(t, names["info"])
	assert.True(t, names["update"])
	assert.True(t, names["delete"])
}

func TestDeriveSkipsOperationWithNoConcreteGroup(t *testing.T) {
	doc := `
paths:
  /{id}:
    get:
      summary: weird
`
	d := NewDeriver()
	specs, warnings, err := d.Derive("heroku", []byte(doc))
	require.NoError(t, err)
	assert.Empty(t, specs)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "no concrete path segment")
}

func TestDeriveRejectsMalformedDocument(t *testing.T) {
	d := NewDeriver()
	_, _, err := d.Derive("heroku", []byte("not: [valid"))
	assert.Error(t, err)
}

func TestDeriveIsIdempotentUpToOrdering(t *testing.T) {
	d := NewDeriver()
	a, _, err := d.Derive("heroku", []byte(addonConfigDoc))
	require.NoError(t, err)
	b, _, err := d.Derive("heroku", []byte(addonConfigDoc))
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	byKeyA := map[string]string{}
	for _, s := range a {
		byKeyA[s.ID()] = s.Summary
	}
	for _, s := range b {
		assert.Equal(t, byKeyA[s.ID()], s.Summary)
	}
}

func TestDeriveFlagsFromQueryParamsAndRequestBody(t *testing.T) {
	doc := `
paths:
  /apps:
    post:
      summary: Create app
      parameters:
        - name: region
          in: query
          required: true
          schema:
            type: string
            enum: [us, eu]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
                stack: {type: string, default: heroku-22}
`
	d := NewDeriver()
	specs, _, err := d.Derive("heroku", []byte(doc))
	require.NoError(t, err)
	require.Len(t, specs, 1)

	byName := map[string]api.CommandFlag{}
	for _, f := range specs[0].Flags {
		byName[f.LongName] = f
	}
	require.Contains(t, byName, "region")
	assert.True(t, byName["region"].Required)
	assert.Equal(t, api.ArgEnum, byName["region"].Type)

	require.Contains(t, byName, "name")
	assert.True(t, byName["name"].Required)

	require.Contains(t, byName, "stack")
	assert.False(t, byName["stack"].Required)
	assert.Equal(t, "heroku-22", byName["stack"].Default)
}
