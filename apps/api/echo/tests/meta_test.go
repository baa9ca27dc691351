package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/cgbcreil/gestio/apps/api/echo"
	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/indicator"
)

func TestMetaAPI(t *testing.T) {
	app, _ := setup(t)

	tests := []struct {
		httpTest
		finance  bool
		secteurs []string
	}{
		{httpTest{name: "directrice", user: directrice, wantCode: http.StatusOK}, true, core.DefaultSecteurs},
		{httpTest{name: "admin_tech", user: adminTech, wantCode: http.StatusOK}, false, core.DefaultSecteurs},
		{httpTest{name: "sector manager", user: familles, wantCode: http.StatusOK}, true, []string{"Familles"}},
		{httpTest{name: "anonymous", user: anonymous, wantCode: http.StatusUnauthorized}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodGet, "/v1/meta"
			rec := serve(app, tt.httpTest)
			checkCode(t, tt.httpTest, rec)
			if tt.wantCode != http.StatusOK {
				return
			}

			var meta MetaResponse
			unmarshal(t, rec, &meta)
			assert.Equal(t, tt.finance, meta.Finance)
			assert.Equal(t, tt.secteurs, meta.Secteurs)
			assert.Equal(t, tt.user.ID, meta.User.ID)
			require.Len(t, meta.Indicators, len(indicator.Kinds()))
			assert.Len(t, meta.Packs, len(indicator.Packs()))
		})
	}
}

func TestServer_home(t *testing.T) {
	app, _ := setup(t)
	rec := serve(app, httpTest{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
