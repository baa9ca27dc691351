package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	. "github.com/cgbcreil/gestio/apps/api/echo"
	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/indicator"
	"github.com/cgbcreil/gestio/core/objective"
	"github.com/cgbcreil/gestio/core/scope"
	logsvc "github.com/cgbcreil/gestio/services/logger"
	"github.com/cgbcreil/gestio/testutil"
)

var (
	directrice = scope.User{ID: "1", Role: scope.RoleDirectrice}
	finance    = scope.User{ID: "2", Role: "Financiere"}
	numerique  = scope.User{ID: "3", Role: scope.RoleResponsableSecteur, SecteurAssigne: "Numérique"}
	familles   = scope.User{ID: "4", Role: scope.RoleResponsableSecteur, SecteurAssigne: "Familles"}
	adminTech  = scope.User{ID: "5", Role: scope.RoleAdminTech}
	anonymous  = scope.User{}

	errForbidden    = httpErr{Error: "accès refusé"}
	errUnidentified = httpErr{Error: "utilisateur non identifié"}
)

func setup(t *testing.T) (*Server, *testutil.Store) {
	store := testutil.NewSeededStore(t)

	conf := &core.Config{AppName: "gestio", TestMode: true, Secteurs: core.DefaultSecteurs}
	logger := logsvc.NewZapLoggerFrom(zaptest.NewLogger(t))
	validate, translator := core.NewValidator(conf.Secteurs)

	budgetSvc := budget.NewService(store.Budget, store.DB)
	activitySvc := activity.NewService(store.Activity, store.DB, activity.Options{})

	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		BudgetSvc:    budgetSvc,
		ActivitySvc:  activitySvc,
		IndicatorSvc: indicator.NewService(store.Indicators, store.DB, budgetSvc, activitySvc),
		ObjectiveSvc: objective.NewService(store.Objectives, store.DB, budgetSvc),
		Validate:     validate,
		Translator:   translator,
	})
	return server, store
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	user     scope.User
	wantCode int
	wantData []byte
}

func newUserRequest(method, path string, usr scope.User, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if usr.Role != "" {
		req.Header.Set(HeaderUserID, usr.ID)
		req.Header.Set(HeaderUserRole, usr.Role)
		req.Header.Set(HeaderUserSecteur, usr.SecteurAssigne)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func serve(app http.Handler, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newUserRequest(tt.method, tt.path, tt.user, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	checkCode(t, tt, rec)
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
