package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/aaronlou/innergrow.ai/core/discussion"
)

func (cli *commandLine) pinPost(id string, pinned bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return discussion.ErrPostNotFound
	}
	p, err := cli.discussionSvc.SetPinned(context.Background(), id, pinned)
	if err != nil {
		return err
	}
	if p.IsPinned {
		logger.Printf("post %q pinned", p.Title)
	} else {
		logger.Printf("post %q unpinned", p.Title)
	}
	return nil
}
