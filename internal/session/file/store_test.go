package file

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ereader/internal/platform/logger"
	"ereader/internal/session"
	"ereader/internal/session/storetest"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	n := 0
	suite.Run(t, &storetest.StoreSuite{New: func() session.Store {
		n++
		return New(filepath.Join(dir, "run", string(rune('a'+n)), "session.json"))
	}})
}

func TestEncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	sealer, err := session.NewSealer(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	n := 0
	suite.Run(t, &storetest.StoreSuite{New: func() session.Store {
		n++
		return New(filepath.Join(dir, string(rune('a'+n)), "session.json"), WithSealer(sealer))
	}})
}

type FileStoreSuite struct {
	suite.Suite
	path  string
	store *FileStore
	logs  *bytes.Buffer
}

func (s *FileStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "nested", "session.json")
	s.logs = &bytes.Buffer{}
	s.store = New(s.path, WithLogger(logger.NewWithWriter(s.logs, "debug")))
}

func (s *FileStoreSuite) writeRaw(content string) {
	s.Require().NoError(os.MkdirAll(filepath.Dir(s.path), 0o700))
	s.Require().NoError(os.WriteFile(s.path, []byte(content), 0o600))
}

func (s *FileStoreSuite) TestPersistsOriginalKeys() {
	s.Require().NoError(s.store.Write(context.Background(), storetest.Sample(4)))

	raw, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	var doc map[string]string
	s.Require().NoError(json.Unmarshal(raw, &doc))
	s.Contains(doc, "auth_token")
	s.Contains(doc["user_data"], `"id":4`)

	info, err := os.Stat(s.path)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm())
}

func (s *FileStoreSuite) TestSurvivesRestart() {
	s.Require().NoError(s.store.Write(context.Background(), storetest.Sample(4)))

	reopened := New(s.path)
	got, err := reopened.Read(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(4, got.User.ID)
}

func (s *FileStoreSuite) TestCorruptRecordsReadAsAbsent() {
	cases := map[string]string{
		"not json":      "{{{",
		"garbage user":  `{"auth_token":"tok","user_data":"not-json"}`,
		"token only":    `{"auth_token":"tok"}`,
		"empty object":  `{}`,
		"user is empty": `{"auth_token":"tok","user_data":"{}"}`,
	}
	for name, content := range cases {
		s.Run(name, func() {
			s.writeRaw(content)
			got, err := s.store.Read(context.Background())
			s.NoError(err)
			s.Nil(got)
		})
	}
	s.Contains(s.logs.String(), "treating as logged out")
}

func (s *FileStoreSuite) TestObserveCorruptStartsLoggedOut() {
	s.writeRaw(`{"auth_token":"tok","user_data":"[1,2"}`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Nil(<-s.store.Observe(ctx))
}

func (s *FileStoreSuite) TestWrongKeyReadsAsAbsent() {
	sealerA, _ := session.NewSealer(bytes.Repeat([]byte{1}, 32))
	sealerB, _ := session.NewSealer(bytes.Repeat([]byte{2}, 32))

	s.Require().NoError(New(s.path, WithSealer(sealerA)).Write(context.Background(), storetest.Sample(1)))

	got, err := New(s.path, WithSealer(sealerB)).Read(context.Background())
	s.NoError(err)
	s.Nil(got)
}

func (s *FileStoreSuite) TestEncryptedFileHidesToken() {
	sealer, _ := session.NewSealer(bytes.Repeat([]byte{1}, 32))
	sess := storetest.Sample(1)
	sess.Token = "very-secret-token"
	s.Require().NoError(New(s.path, WithSealer(sealer)).Write(context.Background(), sess))

	raw, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	s.NotContains(string(raw), "very-secret-token")
}

func (s *FileStoreSuite) TestNoTempFilesLeftBehind() {
	for i := 1; i <= 3; i++ {
		s.Require().NoError(s.store.Write(context.Background(), storetest.Sample(i)))
	}
	entries, err := os.ReadDir(filepath.Dir(s.path))
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/tmp/x/session.json", New("/tmp/x/session.json").Path())
}
