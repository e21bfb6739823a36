package reddit

import (
	"context"
	"time"
)

// KindSubmission is the reddit kind prefix for link and self posts.
const KindSubmission = "t3"

var submissionNormalizers = map[string]normalizer{
	"author": normalizeRedditor,
}

// Submission is a post, for example one discussing a live thread.
type Submission struct {
	Base
}

// NewSubmission returns a submission built from exactly one of id or data.
// A lazy submission is fetched through the by_id endpoint on first access.
func NewSubmission(r Requester, id string, data map[string]any) (*Submission, error) {
	if (id == "") == (len(data) == 0) {
		return nil, ErrInvalidConstruction
	}
	s := &Submission{Base: newBase(r, KindSubmission, "id", pathByID, submissionNormalizers)}
	if id != "" {
		s.attrs["id"] = id
		return s, nil
	}
	s.hydrate(data)
	s.fetched = true
	return s, nil
}

// ID returns the submission id without the kind prefix.
func (s *Submission) ID() string {
	return s.String()
}

// Fullname returns the id with its kind prefix, for example "t3_abc".
func (s *Submission) Fullname() string {
	return KindSubmission + "_" + s.ID()
}

// Title returns the submission title.
func (s *Submission) Title(ctx context.Context) (string, error) {
	return s.stringAttr(ctx, "title")
}

// URL returns the submission's link target.
func (s *Submission) URL(ctx context.Context) (string, error) {
	return s.stringAttr(ctx, "url")
}

// Permalink returns the path of the comments page.
func (s *Submission) Permalink(ctx context.Context) (string, error) {
	return s.stringAttr(ctx, "permalink")
}

// Subreddit returns the name of the subreddit the submission was posted to.
func (s *Submission) Subreddit(ctx context.Context) (string, error) {
	return s.stringAttr(ctx, "subreddit")
}

// Score returns the submission score.
func (s *Submission) Score(ctx context.Context) (int64, error) {
	return s.intAttr(ctx, "score")
}

// Author returns the submission author, or nil for deleted accounts.
func (s *Submission) Author(ctx context.Context) (*Redditor, error) {
	v, err := s.Attr(ctx, "author")
	if err != nil {
		return nil, err
	}
	u, _ := v.(*Redditor)
	return u, nil
}

// Created returns the submission time.
func (s *Submission) Created(ctx context.Context) (time.Time, error) {
	return s.timeAttr(ctx, "created_utc")
}
