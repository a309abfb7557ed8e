package social

import (
	"net/http"
	"testing"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "http://127.0.0.1:8080/api"},
		{"localhost:9000", "http://localhost:9000/api"},
		{"http://example.com:1234/", "http://example.com:1234/api"},
		{"https://example.com/social/api/?x=1#frag", "https://example.com/social/api"},
		{"  http://example.com/api  ", "http://example.com/api"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := parseBaseURL(tt.in)
			if err != nil {
				t.Fatalf("parseBaseURL(%q) returned error: %v", tt.in, err)
			}
			if got := u.String(); got != tt.want {
				t.Fatalf("parseBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBaseURL_RejectsMissingHost(t *testing.T) {
	if _, err := parseBaseURL("http:///api"); err == nil {
		t.Fatalf("parseBaseURL without host returned nil error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		status int
		body   string
		want   Kind
		msg    string
	}{
		{"code wins over status", opFollow, 400, `{"code":"SELF_FOLLOW","error":"nope"}`, KindSelfFollow, "nope"},
		{"409 on follow", opFollow, 409, `{}`, KindAlreadyFollowing, ""},
		{"409 on unfollow", opUnfollow, 409, ``, KindNotFollowing, ""},
		{"404", opGetUser, 404, ``, KindNotFound, ""},
		{"legacy already following", opFollow, 400, `{"error":"You are already following this user"}`, KindAlreadyFollowing, "You are already following this user"},
		{"legacy self follow", opFollow, 400, `{"error":"User cannot follow themselves"}`, KindSelfFollow, "User cannot follow themselves"},
		{"legacy not following", opUnfollow, 400, `{"error":"You are not following this user"}`, KindNotFollowing, "You are not following this user"},
		{"message field", opCreatePost, 400, `{"message":"Content too long"}`, KindBadRequest, "Content too long"},
		{"server", opListUsers, 503, `<html>`, KindServer, ""},
		{"legacy text ignored on 5xx", opFollow, 500, `{"error":"already following"}`, KindServer, "already following"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.op, tt.status, []byte(tt.body))
			if err.Kind != tt.want {
				t.Fatalf("Kind = %v, want %v", err.Kind, tt.want)
			}
			if err.Message != tt.msg {
				t.Fatalf("Message = %q, want %q", err.Message, tt.msg)
			}
			if err.Status != tt.status {
				t.Fatalf("Status = %d, want %d", err.Status, tt.status)
			}
		})
	}
}

func TestError_MessageAndHelpers(t *testing.T) {
	err := classify(opFollow, http.StatusBadRequest, []byte(`{"error":"You are already following this user"}`))
	want := "follow: api returned status 400: You are already following this user"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !IsConflict(err) || !IsKind(err, KindAlreadyFollowing) {
		t.Fatalf("helpers did not recognise %v", err)
	}
	if IsKind(nil, KindUnknown) {
		t.Fatalf("IsKind(nil) = true, want false")
	}
	if KindServer.Conflict() {
		t.Fatalf("KindServer.Conflict() = true")
	}
}
