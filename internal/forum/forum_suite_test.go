package forum_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestForumClient(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Forum Client Suite")
}
