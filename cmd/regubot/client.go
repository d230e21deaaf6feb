package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/regubot/internal/assistant"
	"github.com/hyperjump/regubot/internal/extract"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/models"
)

// uploadField matches the multipart field the server reads uploads from.
const uploadField = "files"

type askResponse struct {
	SessionID string `json:"session_id"`
	models.ResponseEnvelope
}

type historyResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []models.Message `json:"messages"`
}

type watchListResponse struct {
	Directories []string `json:"directories"`
}

func apiURL(serverURL, path string) string {
	return strings.TrimRight(serverURL, "/") + "/api/v1" + path
}

// readError turns a non-success response into an error carrying the server's message.
func readError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func decode(resp *http.Response, v interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// expandIngestPaths resolves files and directories into a sorted list of files
// in supported formats, restricted to exts when non-empty.
func expandIngestPaths(paths, exts []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !extract.Supported(d.Name()) || !extAllowed(d.Name(), exts) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func extAllowed(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, e := range exts {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

// uploadViaHTTP posts files as one multipart batch. A batch that produced no text
// returns its result together with indexer.ErrNothingToIngest.
func uploadViaHTTP(serverURL string, files []string) (*indexer.IngestResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported files to upload")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		fw, err := mw.CreateFormFile(uploadField, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(apiURL(serverURL, "/documents"), mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
		var res indexer.IngestResult
		if err := decode(resp, &res); err != nil {
			return nil, err
		}
		return &res, nil
	case http.StatusUnprocessableEntity:
		var res indexer.IngestResult
		if err := decode(resp, &res); err != nil {
			return nil, err
		}
		return &res, indexer.ErrNothingToIngest
	}
	return nil, readError(resp)
}

func askViaHTTP(serverURL, sessionID, question string) (*askResponse, error) {
	body, err := json.Marshal(map[string]string{"session_id": sessionID, "question": question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(apiURL(serverURL, "/ask"), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var out askResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func statusViaHTTP(serverURL string) (*assistant.Status, error) {
	resp, err := http.Get(apiURL(serverURL, "/status"))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var out struct {
		assistant.Status
		Config struct {
			Dimensions int `json:"embedding_dimensions"`
		} `json:"config"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	st := out.Status
	st.Dimensions = out.Config.Dimensions
	return &st, nil
}

func historyViaHTTP(serverURL, sessionID string, limit int) ([]models.Message, error) {
	u := apiURL(serverURL, "/sessions/"+url.PathEscape(sessionID)+"/messages")
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var out historyResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func clearHistoryViaHTTP(serverURL, sessionID string) error {
	req, err := http.NewRequest(http.MethodDelete, apiURL(serverURL, "/sessions/"+url.PathEscape(sessionID)+"/messages"), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return nil
}

func watchAddViaHTTP(serverURL, path string) error {
	body, err := json.Marshal(map[string]interface{}{"path": path, "sync": true})
	if err != nil {
		return err
	}
	resp, err := http.Post(apiURL(serverURL, "/watch/directories"), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return readError(resp)
	}
	return nil
}

func watchRemoveViaHTTP(serverURL, path string) error {
	req, err := http.NewRequest(http.MethodDelete, apiURL(serverURL, "/watch/directories?path="+url.QueryEscape(path)), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return nil
}

func watchListViaHTTP(serverURL string) ([]string, error) {
	resp, err := http.Get(apiURL(serverURL, "/watch/directories"))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var out watchListResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}
