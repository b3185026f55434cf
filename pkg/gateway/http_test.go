package gateway

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(chunkSize uint32, k int, peerIDs ...string) *httptest.Server {
	gw, _ := newTestGateway(chunkSize, k, peerIDs...)
	srv := NewServer(gw, k)
	return httptest.NewServer(srv.Router())
}

func multipartBody(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

func TestHTTPUploadDownloadRoundTrip(t *testing.T) {
	ts := newTestServer(64, 2, "p1", "p2")
	defer ts.Close()

	data := []byte("the quick brown fox jumps over the lazy dog")
	body, contentType := multipartBody(t, "file", "fox.txt", data)

	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}

	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploaded.FileID == "" || uploaded.EncryptionKey == "" {
		t.Fatalf("upload response missing file_id or encryption_key: %+v", uploaded)
	}

	downResp, err := http.Get(ts.URL + "/download/" + uploaded.FileID + "?key=" + uploaded.EncryptionKey)
	if err != nil {
		t.Fatalf("GET /download: %v", err)
	}
	defer downResp.Body.Close()
	if downResp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", downResp.StatusCode)
	}

	gotFileID := downResp.Header.Get("X-File-Id")
	if gotFileID != uploaded.FileID {
		t.Fatalf("X-File-Id header = %s, want %s", gotFileID, uploaded.FileID)
	}

	var got bytes.Buffer
	if _, err := got.ReadFrom(downResp.Body); err != nil {
		t.Fatalf("read download body: %v", err)
	}
	if !bytes.Equal(got.Bytes(), data) {
		t.Fatalf("downloaded content mismatch")
	}
}

func TestHTTPDownloadRejectsMalformedKey(t *testing.T) {
	ts := newTestServer(64, 1, "p1")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/download/anything?key=not-hex")
	if err != nil {
		t.Fatalf("GET /download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHTTPListAndVerifyAndDelete(t *testing.T) {
	ts := newTestServer(64, 2, "p1", "p2")
	defer ts.Close()

	data := []byte("file contents for listing")
	body, contentType := multipartBody(t, "file", "doc.bin", data)
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	var uploaded uploadResponse
	json.NewDecoder(resp.Body).Decode(&uploaded)
	resp.Body.Close()

	listResp, err := http.Get(ts.URL + "/files")
	if err != nil {
		t.Fatalf("GET /files: %v", err)
	}
	var list fileListResponse
	json.NewDecoder(listResp.Body).Decode(&list)
	listResp.Body.Close()
	if list.TotalFiles != 1 {
		t.Fatalf("total_files = %d, want 1", list.TotalFiles)
	}

	verifyResp, err := http.Get(ts.URL + "/files/" + uploaded.FileID + "/verify")
	if err != nil {
		t.Fatalf("GET /files/{id}/verify: %v", err)
	}
	if verifyResp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", verifyResp.StatusCode)
	}
	verifyResp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/files/"+uploaded.FileID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /files/{id}: %v", err)
	}
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", delResp.StatusCode)
	}
	delResp.Body.Close()

	listResp2, _ := http.Get(ts.URL + "/files")
	var list2 fileListResponse
	json.NewDecoder(listResp2.Body).Decode(&list2)
	listResp2.Body.Close()
	if list2.TotalFiles != 0 {
		t.Fatalf("total_files after delete = %d, want 0", list2.TotalFiles)
	}
}

func TestHTTPHealth(t *testing.T) {
	ts := newTestServer(64, 1, "p1", "p2", "p3")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if h.Status != "ok" || h.ActiveStoragePeers != 3 {
		t.Fatalf("unexpected health body: %+v", h)
	}
}

func TestHTTPUploadRejectsEmptyBody(t *testing.T) {
	ts := newTestServer(64, 1, "p1")
	defer ts.Close()

	body, contentType := multipartBody(t, "file", "empty.bin", []byte{})
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHTTPDownloadMissingFileIsNotFound(t *testing.T) {
	ts := newTestServer(64, 1, "p1")
	defer ts.Close()

	key := hex.EncodeToString(bytes.Repeat([]byte{0x02}, 32))
	resp, err := http.Get(ts.URL + "/download/does-not-exist?key=" + key)
	if err != nil {
		t.Fatalf("GET /download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
