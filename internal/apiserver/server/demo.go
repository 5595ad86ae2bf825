package server

import (
	"net/http"

	"user-admin/internal/apiserver/auth"
	"user-admin/internal/apiserver/user"
)

// demoRoutes 守卫演示接口：/aaa 公开，/bbb 需要 ccc 权限
func (h *Handler) demoRoutes() []auth.Route {
	return []auth.Route{
		{Method: http.MethodGet, Path: "/aaa", Policy: auth.Policy{Public: true}, Handler: h.AAA},
		{Method: http.MethodGet, Path: "/bbb", Policy: auth.Policy{Permissions: []string{user.PermCCC}}, Handler: h.BBB},
	}
}

// AAA 公开接口
func (h *Handler) AAA(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "aaa")
}

// BBB 需要 ccc 权限，回显调用者
func (h *Handler) BBB(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, auth.MsgLoginRequired)
		return
	}
	writeOK(w, "bbb "+p.Username)
}
