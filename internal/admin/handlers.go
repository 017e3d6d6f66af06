// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package admin

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/forgechat/forgechat/internal/build"
	"github.com/forgechat/forgechat/internal/plugin"
	"github.com/forgechat/forgechat/pkg/errutil"
)

//go:embed frontend.html
var frontendPage []byte

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validate checks submitted plugin names before they become file paths.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Plugin names become filenames; keep them to a safe slug so a
	// submitted name can never escape the plugin directory.
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// listEntry is the wire shape consumed by the frontend table.
type listEntry struct {
	Filename    string `json:"filename"`
	Name        string `json:"name"`
	Description string `json:"desc"`
	Status      string `json:"status"`
	Command     string `json:"cmd"`
}

// handleCompile accepts form-encoded filename + code, builds the
// plugin, and registers the resulting artifact. The response body is
// plain text: "Success" or the compiler diagnostics verbatim.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}

	filename := r.PostFormValue("filename")
	code := r.PostFormValue("code")
	if err := validate.Var(filename, "required,max=64,slug"); err != nil {
		http.Error(w, "invalid filename: letters, digits, '-' and '_' only", http.StatusBadRequest)
		return
	}
	if code == "" {
		http.Error(w, "empty code", http.StatusBadRequest)
		return
	}

	res, err := s.builder.Compile(r.Context(), filename, code)
	if err != nil {
		errutil.LogWarn(slog.Default(), "plugin build failed", err)
		writeText(w, http.StatusUnprocessableEntity, "Compile Error:\n"+build.Diagnostics(err))
		return
	}

	if _, err := s.plugins.Register(r.Context(), res.ArtifactPath); err != nil {
		errutil.LogError(slog.Default(), "could not register built plugin", err)
		writeText(w, http.StatusInternalServerError, "Build succeeded but load failed: "+err.Error())
		return
	}

	writeText(w, http.StatusOK, "Success")
}

// handleList returns every known artifact merged with registry state.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos, err := s.plugins.List()
	if err != nil {
		errutil.LogError(slog.Default(), "could not list plugins", err)
		http.Error(w, "could not list plugins", http.StatusInternalServerError)
		return
	}

	entries := make([]listEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, listEntry{
			Filename:    info.File,
			Name:        info.Name,
			Description: info.Description,
			Status:      string(info.Status),
			Command:     info.Command,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Debug("error writing list response", "error", err)
	}
}

// handleManage dispatches load/unload/delete actions from the frontend.
func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}

	action := r.PostFormValue("action")
	file := r.PostFormValue("file")
	command := r.PostFormValue("cmd")

	if file != "" && filepath.Base(file) != file {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	switch action {
	case "load":
		if file == "" {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		rec, err := s.plugins.Register(r.Context(), filepath.Join(s.pluginsDir, file))
		if err != nil {
			writeManageError(w, err)
			return
		}
		writeText(w, http.StatusOK, "Loaded #"+rec.Command+".")

	case "unload":
		if command == "" {
			http.Error(w, "missing cmd", http.StatusBadRequest)
			return
		}
		if err := s.plugins.Unload(command); err != nil {
			writeManageError(w, err)
			return
		}
		writeText(w, http.StatusOK, "Unloaded #"+command+".")

	case "delete":
		if file == "" {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		outcome, err := s.plugins.Delete(file, command)
		if err != nil {
			writeManageError(w, err)
			return
		}
		if outcome == plugin.DeleteDeferred {
			writeText(w, http.StatusOK, "Unloaded; file removal deferred to next restart.")
			return
		}
		writeText(w, http.StatusOK, "Deleted permanently.")

	default:
		http.Error(w, "unknown action: "+action, http.StatusBadRequest)
	}
}

func (s *Server) handleFrontend(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(frontendPage); err != nil {
		slog.Debug("error writing frontend", "error", err)
	}
}

// writeManageError maps lifecycle error codes onto HTTP statuses with a
// plain-text body for the frontend.
func writeManageError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case plugin.CodeNotFound, plugin.CodeUnknownCommand:
			status = http.StatusNotFound
		case plugin.CodeContractViolation:
			status = http.StatusUnprocessableEntity
		case plugin.CodeLockedResource:
			status = http.StatusConflict
		}
	}
	errutil.LogWarn(slog.Default(), "manage action failed", err)
	writeText(w, status, err.Error())
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body + "\n")); err != nil {
		slog.Debug("error writing response", "error", err)
	}
}
