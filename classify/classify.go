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

// Package classify decides whether a push was a fast-forward or a
// history-rewriting rebase/amend/reset.
package classify

// Kind is the outcome of classifying a push.
type Kind int

const (
	// FastForward means the new commits were simply appended.
	FastForward Kind = iota
	// Rewrite means history was amended, rebased, or reset.
	Rewrite
)

func (k Kind) String() string {
	if k == FastForward {
		return "fast-forward"
	}
	return "rewrite"
}

// IsAncestor is satisfied by git.Repo.IsAncestor. Its polarity is
// "is a an ancestor of b", exactly the exit-code convention of
// "git merge-base --is-ancestor" -- NOT "did an error occur". A caller
// that inverts this reads every rewrite push as a fast-forward and vice
// versa.
type IsAncestor func(a, b string) (bool, error)

// Push classifies a push from shaBefore to shaAfter. It is a
// fast-forward iff shaBefore is an ancestor of shaAfter.
func Push(shaBefore, shaAfter string, isAncestor IsAncestor) (Kind, error) {
	ok, err := isAncestor(shaBefore, shaAfter)
	if err != nil {
		return FastForward, err
	}
	if ok {
		return FastForward, nil
	}
	return Rewrite, nil
}
