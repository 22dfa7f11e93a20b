/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package render

import (
	"io/ioutil"
	"os"

	"github.com/satori/go.uuid"
)

// scopedFile is a temp file guaranteed to be released on every exit path,
// including renderer failure. Concurrent renders never collide on name
// because the suffix is a UUID, not a counter.
type scopedFile struct {
	f *os.File
}

func newScopedFile(prefix string) (*scopedFile, error) {
	name := prefix + "-" + uuid.NewV4().String()
	f, err := ioutil.TempFile("", name)
	if err != nil {
		return nil, err
	}
	return &scopedFile{f: f}, nil
}

func (s *scopedFile) Name() string { return s.f.Name() }

func (s *scopedFile) Write(p []byte) (int, error) { return s.f.Write(p) }

// Close closes and removes the underlying file. Safe to call multiple
// times.
func (s *scopedFile) Close() error {
	closeErr := s.f.Close()
	removeErr := os.Remove(s.f.Name())
	if closeErr != nil {
		return closeErr
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return removeErr
	}
	return nil
}
