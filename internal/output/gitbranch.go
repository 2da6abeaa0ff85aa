package output

import (
	git "github.com/go-git/go-git/v6"
)

// currentBranch reports the short branch name of the git repo rooted at or
// above dir, or "" if dir isn't inside a repo (not uncommon for ad-hoc
// session directories).
func currentBranch(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Name().Short()
}
