package httpserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	identity "opencast/contexts/identity-access/identity-service"
	identityhttp "opencast/contexts/identity-access/identity-service/transport/http"
	organizations "opencast/contexts/identity-access/organization-service"
	orghttp "opencast/contexts/identity-access/organization-service/transport/http"
	"opencast/internal/app/bootstrap"
	"opencast/internal/platform/httpserver"
)

func newTestServer(t *testing.T) (http.Handler, identity.Module, organizations.Module) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	identityModule, orgModule := bootstrap.BuildInMemory(logger)
	server := httpserver.New(identityModule, orgModule, logger, ":0")
	return server.Handler(), identityModule, orgModule
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request failed: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response failed: %v (body %q)", err, recorder.Body.String())
	}
	return out
}

func registerAccount(t *testing.T, handler http.Handler, email, username string) identityhttp.AuthResponse {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", identityhttp.RegisterRequest{
		Email:    email,
		Username: username,
		Password: "correct horse",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, recorder.Code, recorder.Body.String())
	}
	return decodeBody[identityhttp.AuthResponse](t, recorder)
}

func createOrganization(t *testing.T, handler http.Handler, token, name, slug string) orghttp.OrganizationResponse {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/api/orgs", token, orghttp.CreateOrganizationRequest{
		Name: name,
		Slug: slug,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create org %s: status %d body %s", slug, recorder.Code, recorder.Body.String())
	}
	return decodeBody[orghttp.OrganizationResponse](t, recorder)
}

func addMember(t *testing.T, handler http.Handler, token, orgID, email, role string) orghttp.MemberResponse {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/api/orgs/"+orgID+"/members", token, orghttp.AddMemberRequest{
		UserEmail: email,
		RoleName:  role,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("add member %s: status %d body %s", email, recorder.Code, recorder.Body.String())
	}
	return decodeBody[orghttp.MemberResponse](t, recorder)
}

func expectErrorCode(t *testing.T, recorder *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d (body %s)", status, recorder.Code, recorder.Body.String())
	}
	envelope := decodeBody[orghttp.ErrorResponse](t, recorder)
	if envelope.Code != code {
		t.Fatalf("expected error code %q, got %q", code, envelope.Code)
	}
}

func TestProtectedEndpointsRequireBearerToken(t *testing.T) {
	handler, _, _ := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/orgs"},
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodGet, "/api/memberships"},
	}
	for _, p := range paths {
		if recorder := doJSON(t, handler, p.method, p.path, "", nil); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: status %d", p.method, p.path, recorder.Code)
		}
		if recorder := doJSON(t, handler, p.method, p.path, "not-a-token", nil); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s with garbage token: status %d", p.method, p.path, recorder.Code)
		}
	}
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	handler, _, _ := newTestServer(t)
	auth := registerAccount(t, handler, "sam@acme.test", "sam")

	recorder := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", identityhttp.RegisterRequest{
		Email:    "sam@acme.test",
		Username: "other",
		Password: "correct horse",
	})
	expectErrorCode(t, recorder, http.StatusConflict, "email_taken")

	recorder = doJSON(t, handler, http.MethodPost, "/api/auth/login", "", identityhttp.LoginRequest{
		Email:    "sam@acme.test",
		Password: "wrong password",
	})
	expectErrorCode(t, recorder, http.StatusUnauthorized, "invalid_credentials")

	recorder = doJSON(t, handler, http.MethodPost, "/api/auth/login", "", identityhttp.LoginRequest{
		Email:    "sam@acme.test",
		Password: "correct horse",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/auth/refresh", "", identityhttp.RefreshRequest{
		RefreshToken: auth.Tokens.RefreshToken,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", recorder.Code, recorder.Body.String())
	}
	pair := decodeBody[identityhttp.TokenPairResponse](t, recorder)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("refresh returned empty tokens")
	}

	// The access token must not be accepted where a refresh token belongs.
	recorder = doJSON(t, handler, http.MethodPost, "/api/auth/refresh", "", identityhttp.RefreshRequest{
		RefreshToken: auth.Tokens.AccessToken,
	})
	expectErrorCode(t, recorder, http.StatusUnauthorized, "invalid_token")
}

func TestOrganizationExistenceHiddenFromOutsiders(t *testing.T) {
	handler, _, _ := newTestServer(t)
	owner := registerAccount(t, handler, "owner@acme.test", "owner")
	outsider := registerAccount(t, handler, "outsider@elsewhere.test", "outsider")
	org := createOrganization(t, handler, owner.Tokens.AccessToken, "Acme", "acme")

	recorder := doJSON(t, handler, http.MethodGet, "/api/orgs/"+org.OrganizationID, outsider.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusNotFound, "organization_not_found")

	recorder = doJSON(t, handler, http.MethodGet, "/api/orgs/"+org.OrganizationID+"/members", outsider.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusNotFound, "organization_not_found")
}

func TestViewerCannotMutateOrganization(t *testing.T) {
	handler, _, _ := newTestServer(t)
	owner := registerAccount(t, handler, "owner@acme.test", "owner")
	viewer := registerAccount(t, handler, "viewer@acme.test", "viewer")
	org := createOrganization(t, handler, owner.Tokens.AccessToken, "Acme", "acme")
	addMember(t, handler, owner.Tokens.AccessToken, org.OrganizationID, "viewer@acme.test", "viewer")

	name := "Renamed"
	recorder := doJSON(t, handler, http.MethodPatch, "/api/orgs/"+org.OrganizationID, viewer.Tokens.AccessToken, orghttp.UpdateOrganizationRequest{Name: &name})
	expectErrorCode(t, recorder, http.StatusForbidden, "forbidden")

	recorder = doJSON(t, handler, http.MethodPost, "/api/orgs/"+org.OrganizationID+"/members", viewer.Tokens.AccessToken, orghttp.AddMemberRequest{
		UserEmail: "owner@acme.test",
		RoleName:  "member",
	})
	expectErrorCode(t, recorder, http.StatusForbidden, "forbidden")

	recorder = doJSON(t, handler, http.MethodDelete, "/api/orgs/"+org.OrganizationID+"/members/"+owner.User.UserID, viewer.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusForbidden, "forbidden")

	// Reading stays open to every active member.
	if recorder := doJSON(t, handler, http.MethodGet, "/api/orgs/"+org.OrganizationID+"/members", viewer.Tokens.AccessToken, nil); recorder.Code != http.StatusOK {
		t.Fatalf("viewer member listing: status %d body %s", recorder.Code, recorder.Body.String())
	}
}

func TestLastOwnerProtection(t *testing.T) {
	handler, _, _ := newTestServer(t)
	owner := registerAccount(t, handler, "owner@acme.test", "owner")
	org := createOrganization(t, handler, owner.Tokens.AccessToken, "Acme", "acme")

	recorder := doJSON(t, handler, http.MethodDelete, "/api/orgs/"+org.OrganizationID+"/members/"+owner.User.UserID, owner.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusConflict, "last_owner_protection")

	recorder = doJSON(t, handler, http.MethodGet, "/api/memberships", owner.Tokens.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list memberships: status %d", recorder.Code)
	}
	memberships := decodeBody[orghttp.ListMembershipsResponse](t, recorder)
	if len(memberships.Memberships) != 1 {
		t.Fatalf("expected one membership, got %d", len(memberships.Memberships))
	}

	recorder = doJSON(t, handler, http.MethodPatch, "/api/memberships/"+memberships.Memberships[0].MembershipID, owner.Tokens.AccessToken, orghttp.UpdateMemberRoleRequest{
		RoleName: "admin",
	})
	expectErrorCode(t, recorder, http.StatusConflict, "last_owner_protection")
}

func TestSuperuserOnlySurfaces(t *testing.T) {
	handler, identityModule, _ := newTestServer(t)
	sam := registerAccount(t, handler, "sam@acme.test", "sam")
	registerAccount(t, handler, "alex@acme.test", "alex")

	recorder := doJSON(t, handler, http.MethodGet, "/api/users", sam.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusForbidden, "forbidden")
	recorder = doJSON(t, handler, http.MethodGet, "/api/orgs/all", sam.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusForbidden, "forbidden")

	// Promotion takes effect on the next request: the principal is rebuilt
	// from the stored record, not from token claims.
	identityModule.Store.PromoteSuperuser(sam.User.UserID)

	recorder = doJSON(t, handler, http.MethodGet, "/api/users", sam.Tokens.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("superuser user listing: status %d body %s", recorder.Code, recorder.Body.String())
	}
	users := decodeBody[identityhttp.ListUsersResponse](t, recorder)
	if len(users.Users) != 2 {
		t.Fatalf("expected two users, got %d", len(users.Users))
	}
	if recorder := doJSON(t, handler, http.MethodGet, "/api/orgs/all", sam.Tokens.AccessToken, nil); recorder.Code != http.StatusOK {
		t.Fatalf("superuser org listing: status %d", recorder.Code)
	}
}

func TestDeactivatedAccountLosesAccess(t *testing.T) {
	handler, _, _ := newTestServer(t)
	sam := registerAccount(t, handler, "sam@acme.test", "sam")

	recorder := doJSON(t, handler, http.MethodDelete, "/api/users/"+sam.User.UserID, sam.Tokens.AccessToken, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("self deactivation: status %d body %s", recorder.Code, recorder.Body.String())
	}

	if recorder := doJSON(t, handler, http.MethodGet, "/api/users/me", sam.Tokens.AccessToken, nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated account token still works: status %d", recorder.Code)
	}
	recorder = doJSON(t, handler, http.MethodPost, "/api/auth/login", "", identityhttp.LoginRequest{
		Email:    "sam@acme.test",
		Password: "correct horse",
	})
	expectErrorCode(t, recorder, http.StatusUnauthorized, "invalid_credentials")
}

func TestOrganizationCreatorProtectedFromDeactivation(t *testing.T) {
	handler, _, _ := newTestServer(t)
	owner := registerAccount(t, handler, "owner@acme.test", "owner")
	createOrganization(t, handler, owner.Tokens.AccessToken, "Acme", "acme")

	recorder := doJSON(t, handler, http.MethodDelete, "/api/users/"+owner.User.UserID, owner.Tokens.AccessToken, nil)
	expectErrorCode(t, recorder, http.StatusConflict, "user_protected")
}
