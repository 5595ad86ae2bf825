package user

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"user-admin/internal/apiserver/auth"
	"user-admin/pkg/logging"
)

// 成功提示
const (
	MsgRegistered      = "注册成功"
	MsgCodeSent        = "发送成功"
	MsgPasswordUpdated = "密码修改成功"
	MsgProfileUpdated  = "修改成功"
	MsgFrozen          = "冻结成功"
)

// Handler 用户 HTTP 处理器
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler 创建处理器
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{svc: svc, logger: logger.Named("user.http")}
}

// Routes 用户相关路由及其访问策略
func (h *Handler) Routes() []auth.Route {
	const prefix = "/api/v1/user"
	public := auth.Policy{Public: true}
	authed := auth.Policy{}
	return []auth.Route{
		{Method: http.MethodPost, Path: prefix + "/register", Policy: public, Handler: h.Register},
		{Method: http.MethodGet, Path: prefix + "/register-captcha", Policy: public, Handler: h.RegisterCaptcha},
		{Method: http.MethodPost, Path: prefix + "/login", Policy: public, Handler: h.Login},
		{Method: http.MethodPost, Path: prefix + "/refresh-token", Policy: public, Handler: h.Refresh},
		{Method: http.MethodGet, Path: prefix + "/info", Policy: authed, Handler: h.Info},
		{Method: http.MethodPatch, Path: prefix + "/update-password", Policy: authed, Handler: h.UpdatePassword},
		{Method: http.MethodGet, Path: prefix + "/update-password-captcha", Policy: authed, Handler: h.UpdatePasswordCaptcha},
		{Method: http.MethodPatch, Path: prefix + "/update", Policy: authed, Handler: h.UpdateProfile},
		{Method: http.MethodGet, Path: prefix + "/update-user-captcha", Policy: authed, Handler: h.UpdateUserCaptcha},
		{Method: http.MethodGet, Path: prefix + "/list", Policy: auth.Policy{Permissions: []string{PermUserList}}, Handler: h.List},
		{Method: http.MethodGet, Path: prefix + "/freeze", Policy: auth.Policy{Permissions: []string{PermUserFreeze}}, Handler: h.Freeze},
		{Method: http.MethodPost, Path: prefix + "/upload", Policy: authed, Handler: h.Upload},
	}
}

// ============================================================================
// 请求类型
// ============================================================================

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	NickName string `json:"nickName"`
	Email    string `json:"email"`
	Captcha  string `json:"captcha"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
	Email       string `json:"email"`
	Captcha     string `json:"captcha"`
}

type updateUserRequest struct {
	NickName string `json:"nickName"`
	HeadPic  string `json:"headPic"`
	Email    string `json:"email"`
	Captcha  string `json:"captcha"`
}

// ============================================================================
// 认证
// ============================================================================

// Register 用户注册
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.svc.Register(r.Context(), RegisterInput{
		Username: req.Username,
		Password: req.Password,
		NickName: req.NickName,
		Email:    req.Email,
		Code:     req.Captcha,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, MsgRegistered)
}

// RegisterCaptcha 发送注册验证码
func (h *Handler) RegisterCaptcha(w http.ResponseWriter, r *http.Request) {
	h.sendCode(w, r, PurposeRegister)
}

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, res)
}

// Refresh 刷新令牌，任何业务失败都返回 401
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) || IsDomainError(err) {
			writeError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}
		h.fail(w, r, err)
		return
	}
	writeOK(w, pair)
}

// ============================================================================
// 当前用户
// ============================================================================

// Info 当前用户信息
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	view, err := h.svc.UserInfo(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, view)
}

// UpdatePassword 修改密码
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req updatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.svc.UpdatePassword(r.Context(), p.UserID, UpdatePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		Email:       req.Email,
		Code:        req.Captcha,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, MsgPasswordUpdated)
}

// UpdatePasswordCaptcha 发送修改密码验证码
func (h *Handler) UpdatePasswordCaptcha(w http.ResponseWriter, r *http.Request) {
	h.sendCode(w, r, PurposeUpdatePassword)
}

// UpdateProfile 修改昵称、头像
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.svc.UpdateProfile(r.Context(), p.UserID, UpdateProfileInput{
		NickName: req.NickName,
		HeadPic:  req.HeadPic,
		Email:    req.Email,
		Code:     req.Captcha,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, MsgProfileUpdated)
}

// UpdateUserCaptcha 发送修改资料验证码
func (h *Handler) UpdateUserCaptcha(w http.ResponseWriter, r *http.Request) {
	h.sendCode(w, r, PurposeUpdateInfo)
}

// Upload 上传头像（multipart 字段 file）
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	// 多留 1MB 给 multipart 头部
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, ErrFileTooLarge)
			return
		}
		h.fail(w, r, &ValidationError{Messages: []string{"请选择要上传的文件"}})
		return
	}
	defer file.Close()

	if header.Size > MaxAvatarSize {
		h.fail(w, r, ErrFileTooLarge)
		return
	}
	sniff := make([]byte, 512)
	n, _ := file.Read(sniff)
	contentType := http.DetectContentType(sniff[:n])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.fail(w, r, err)
		return
	}

	url, err := h.svc.UploadAvatar(r.Context(), p.UserID, file, header.Size, contentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, url)
}

// ============================================================================
// 管理员
// ============================================================================

// List 用户列表（需要 user:list）
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNo, err := parseIntParam(q.Get("pageNo"), 1)
	if err != nil {
		h.fail(w, r, &ValidationError{Messages: []string{"pageNo 应该传数字"}})
		return
	}
	pageSize, err := parseIntParam(q.Get("pageSize"), defaultPageSize)
	if err != nil {
		h.fail(w, r, &ValidationError{Messages: []string{"pageSize 应该传数字"}})
		return
	}
	res, err := h.svc.ListUsers(r.Context(), ListQuery{
		PageNo:   pageNo,
		PageSize: pageSize,
		Username: q.Get("username"),
		NickName: q.Get("nickName"),
		Email:    q.Get("email"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, res)
}

// Freeze 冻结用户（需要 user:freeze）
func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		h.fail(w, r, &ValidationError{Messages: []string{"userId 不能为空"}})
		return
	}
	if err := h.svc.Freeze(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, MsgFrozen)
}

// ============================================================================
// 工具函数
// ============================================================================

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request, purpose Purpose) {
	email := r.URL.Query().Get("email")
	v := &validator{}
	v.email(email)
	if err := v.err(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.RequestCode(r.Context(), purpose, email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, MsgCodeSent)
}

// principal 守卫已保证存在，缺失说明路由策略配置错误
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := auth.PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, auth.MsgLoginRequired)
		return nil, false
	}
	return p, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail 错误到 HTTP 状态码的映射
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsDomainError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
	case errors.Is(err, ErrUploadDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("request failed",
			"method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// writeOK 成功响应：{code: 200, message: "success", data}
func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"message": message,
		"data":    nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
