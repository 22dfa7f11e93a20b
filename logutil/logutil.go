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

// Package logutil provides the structured log formatter shared by every
// binary in this repo.
package logutil

import "github.com/sirupsen/logrus"

// defaultFieldsFormatter injects a fixed set of fields into every log
// entry before delegating to an underlying formatter.
type defaultFieldsFormatter struct {
	wrapped        logrus.Formatter
	defaultFields  logrus.Fields
}

// NewDefaultFieldsFormatter wraps formatter (or a JSONFormatter if nil)
// so that defaults are merged into every entry's fields, without
// overwriting fields the entry already set.
func NewDefaultFieldsFormatter(formatter logrus.Formatter, defaults logrus.Fields) logrus.Formatter {
	if formatter == nil {
		formatter = &logrus.JSONFormatter{}
	}
	return &defaultFieldsFormatter{wrapped: formatter, defaultFields: defaults}
}

func (f *defaultFieldsFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	for k, v := range f.defaultFields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return f.wrapped.Format(entry)
}
