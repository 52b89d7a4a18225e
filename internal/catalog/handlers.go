package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// requestPrincipal resolves the declared identity headers. The error is
// ErrNoIdentity when neither header is present; read-only handlers
// ignore it.
func requestPrincipal(r *http.Request) (Principal, error) {
	return ResolvePrincipal(r.Header.Get("X-User-ID"), r.Header.Get("X-Token"))
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps a domain error onto an HTTP status with a JSON body
func writeError(w http.ResponseWriter, err error) {
	var (
		valErr  *ValidationError
		perErr  *PersistenceError
		status  int
		message string
	)
	switch {
	case errors.As(err, &valErr):
		status, message = http.StatusBadRequest, valErr.Reason
	case errors.Is(err, ErrNoIdentity):
		status, message = http.StatusBadRequest, "缺少用户标识，请在 X-User-ID 或 X-Token 中提供"
	case errors.Is(err, ErrNotFound):
		status, message = http.StatusNotFound, "资源不存在"
	case errors.Is(err, ErrForbidden):
		status, message = http.StatusForbidden, "没有权限操作此书籍，只能操作自己发布的书籍"
	case errors.As(err, &perErr):
		status, message = http.StatusInternalServerError, "保存失败，请稍后重试"
	default:
		status, message = http.StatusInternalServerError, "服务器内部错误"
	}
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// readUploadFile reads the multipart "file" part of an upload request
func readUploadFile(r *http.Request) ([]byte, string, error) {
	// 50MB form cap to handle high-resolution phone photos; the image
	// store applies its own configured byte limit afterwards
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		return nil, "", &ValidationError{Reason: "无法解析上传表单"}
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &ValidationError{Reason: "未选择文件"}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// handleHealth is a liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleUpload stores a spine photo and returns its file ID
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUploadFile(r)
	if err != nil {
		writeError(w, err)
		return
	}

	owner, _ := requestPrincipal(r)
	img, err := s.service.Upload(data, filename, owner)
	if err != nil {
		slog.Error("Error uploading image", "filename", filename, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "图片上传成功",
		"file_id":  img.ID,
		"filename": img.Filename,
	})
}

// handleAnalyze runs the extraction pipeline on an uploaded photo
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("file_id")
	save := true
	if v := r.URL.Query().Get("save"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, &ValidationError{Reason: "save 参数必须是布尔值"})
			return
		}
		save = parsed
	}

	owner, _ := requestPrincipal(r)
	contact := r.Header.Get("X-Contact")

	result, err := s.service.Analyze(r.Context(), fileID, save, owner, contact)
	if result != nil {
		// Recognition and extraction failures still return the partial
		// data so the client can fall back to manual entry
		if err != nil {
			slog.Error("Analyze pipeline failed", "file_id", fileID, "error", err)
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeError(w, err)
}

// handleAnalyzeDirect uploads and analyzes in one call
func (s *Server) handleAnalyzeDirect(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUploadFile(r)
	if err != nil {
		writeError(w, err)
		return
	}

	owner, _ := requestPrincipal(r)
	img, err := s.service.Upload(data, filename, owner)
	if err != nil {
		slog.Error("Error uploading image", "filename", filename, "error", err)
		writeError(w, err)
		return
	}

	save := true
	if v := r.URL.Query().Get("save"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, &ValidationError{Reason: "save 参数必须是布尔值"})
			return
		}
		save = parsed
	}

	result, err := s.service.Analyze(r.Context(), img.ID, save, owner, r.Header.Get("X-Contact"))
	if result != nil {
		if err != nil {
			slog.Error("Analyze pipeline failed", "file_id", img.ID, "error", err)
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeError(w, err)
}

// handleGetImage returns the stored bytes of an uploaded photo
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	data, img, err := s.service.GetImage(r.PathValue("file_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", img.ContentType)
	w.Write(data)
}

// handleListBooks searches the catalog
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := SearchQuery{
		Keyword:  r.URL.Query().Get("keyword"),
		Category: r.URL.Query().Get("category"),
		Owner:    r.URL.Query().Get("owner"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Status = &n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Offset = n
		}
	}

	books, err := s.service.SearchBooks(q)
	if err != nil {
		slog.Error("Error searching books", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// handleCreateBook manually creates a listing
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	owner, err := requestPrincipal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var draft Book
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, &ValidationError{Reason: "请求体不是合法的 JSON"})
		return
	}
	if contact := r.Header.Get("X-Contact"); contact != "" && draft.Contact == "" {
		draft.Contact = contact
	}

	book, err := s.service.CreateBook(&draft, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// handleGetBook returns a single listing
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.service.GetBook(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// handleUpdateBook edits a listing, owner only
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	requester, err := requestPrincipal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var update BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, &ValidationError{Reason: "请求体不是合法的 JSON"})
		return
	}

	book, err := s.service.UpdateBook(r.PathValue("id"), update, requester)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "更新成功", "book": book})
}

// handleDeleteBook removes a listing, owner only
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	requester, err := requestPrincipal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.DeleteBook(r.PathValue("id"), requester); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "删除成功"})
}

// handleCategories returns the fixed taxonomy
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.service.Categories()})
}

// handleStats returns total and per-category counts
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		slog.Error("Error computing stats", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
