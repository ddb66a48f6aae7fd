package forum_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"roundtable/internal/forum"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		mux      *http.ServeMux
		client   *forum.Client
		ctx      context.Context
		lastBody map[string]any
		lastReq  *http.Request
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		client = forum.NewClient(server.URL+"/api/", forum.WithRequestIDs(func() string { return "req-1" }))
		ctx = context.Background()
		lastBody = nil
		lastReq = nil
	})

	AfterEach(func() {
		server.Close()
	})

	capture := func(r *http.Request) {
		lastReq = r
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			Expect(json.Unmarshal(raw, &lastBody)).To(Succeed())
		}
	}

	It("lists posts for a topic", func() {
		mux.HandleFunc("GET /api/topics/t1/posts", func(w http.ResponseWriter, r *http.Request) {
			capture(r)
			_, _ = io.WriteString(w, `[
				{"id":"p1","topic_id":"t1","author":"user","author_type":"human","body":"hi","mentions":[],"in_reply_to_id":null,"status":"completed","created_at":"2025-01-01T10:00:00"},
				{"id":"p2","topic_id":"t1","author":"physicist","author_type":"agent","expert_name":"physicist","expert_label":"Physicist","body":"","mentions":[],"in_reply_to_id":"p1","status":"pending","created_at":"2025-01-01T10:00:01"}
			]`)
		})

		posts, err := client.ListPosts(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(posts).To(HaveLen(2))
		Expect(posts[0].ParentID()).To(BeEmpty())
		Expect(posts[1].ParentID()).To(Equal("p1"))
		Expect(posts[1].Status).To(Equal(forum.PostPending))
		Expect(posts[1].DisplayName()).To(Equal("Physicist"))
		Expect(posts[0].CreatedTime().IsZero()).To(BeFalse())
		Expect(lastReq.Header.Get("X-Request-ID")).To(Equal("req-1"))
	})

	It("sends mention requests and returns the reply id", func() {
		mux.HandleFunc("POST /api/topics/t1/posts/mention", func(w http.ResponseWriter, r *http.Request) {
			capture(r)
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"user_post":{"id":"p3","topic_id":"t1","author":"user","author_type":"human","body":"@physicist why?","status":"completed","created_at":"2025-01-01T10:00:02"},"reply_post_id":"p4","status":"pending"}`)
		})

		parent := "p1"
		resp, err := client.CreateMentionPost(ctx, "t1", forum.MentionRequest{
			Author:      "user",
			Body:        "@physicist why?",
			ExpertName:  "physicist",
			InReplyToID: &parent,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.ReplyPostID).To(Equal("p4"))
		Expect(resp.UserPost.ID).To(Equal("p3"))
		Expect(lastBody).To(HaveKeyWithValue("expert_name", "physicist"))
		Expect(lastBody).To(HaveKeyWithValue("in_reply_to_id", "p1"))
		Expect(lastReq.Header.Get("Content-Type")).To(Equal("application/json"))
	})

	It("omits in_reply_to_id for root posts", func() {
		mux.HandleFunc("POST /api/topics/t1/posts", func(w http.ResponseWriter, r *http.Request) {
			capture(r)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"p5","topic_id":"t1","author":"user","author_type":"human","body":"plain","status":"completed","created_at":"2025-01-01T10:00:03"}`)
		})

		post, err := client.CreatePost(ctx, "t1", forum.CreatePostRequest{Author: "user", Body: "plain"})
		Expect(err).NotTo(HaveOccurred())
		Expect(post.ID).To(Equal("p5"))
		Expect(lastBody).NotTo(HaveKey("in_reply_to_id"))
	})

	It("rejects a mention response without a reply id", func() {
		mux.HandleFunc("POST /api/topics/t1/posts/mention", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"user_post":{"id":"p3"},"reply_post_id":"","status":"pending"}`)
		})

		_, err := client.CreateMentionPost(ctx, "t1", forum.MentionRequest{Author: "user", Body: "@x", ExpertName: "x"})
		Expect(err).To(HaveOccurred())
	})

	It("decodes discussion status with progress", func() {
		mux.HandleFunc("GET /api/topics/t1/roundtable/status", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"running","result":null,"progress":{"completed_turns":3,"total_turns":10,"current_round":2,"latest_speaker":"Physicist"}}`)
		})

		status, err := client.GetDiscussionStatus(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Status).To(Equal(forum.JobRunning))
		Expect(status.Result).To(BeNil())
		Expect(status.Progress).NotTo(BeNil())
		Expect(status.Progress.CompletedTurns).To(Equal(3))
		Expect(status.Progress.LatestSpeaker).To(Equal("Physicist"))
	})

	It("posts start parameters", func() {
		mux.HandleFunc("POST /api/topics/t1/roundtable", func(w http.ResponseWriter, r *http.Request) {
			capture(r)
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"status":"running","result":null}`)
		})

		status, err := client.StartDiscussion(ctx, "t1", forum.StartDiscussionRequest{NumRounds: 3, MaxTurns: 60, MaxBudgetUSD: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Status).To(Equal(forum.JobRunning))
		Expect(lastBody).To(HaveKeyWithValue("num_rounds", BeNumerically("==", 3)))
		Expect(lastBody).To(HaveKeyWithValue("max_budget_usd", BeNumerically("==", 5)))
	})

	It("maps string details into APIError", func() {
		mux.HandleFunc("GET /api/topics/t1/posts/mention/missing", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Reply post not found"}`)
		})

		_, err := client.GetReplyStatus(ctx, "t1", "missing")
		Expect(err).To(HaveOccurred())
		Expect(forum.IsNotFound(err)).To(BeTrue())
		Expect(forum.Message(err)).To(Equal("Reply post not found"))
	})

	It("joins validation details", func() {
		mux.HandleFunc("POST /api/topics/t1/roundtable", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"detail":[{"msg":"too many rounds"},{"msg":"budget too high"}]}`)
		})

		_, err := client.StartDiscussion(ctx, "t1", forum.StartDiscussionRequest{NumRounds: 99})
		Expect(forum.Message(err)).To(Equal("validation error: too many rounds; budget too high"))
		Expect(forum.IsNotFound(err)).To(BeFalse())
	})

	It("falls back to a status message for empty error bodies", func() {
		mux.HandleFunc("GET /api/topics/t1", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.GetTopic(ctx, "t1")
		Expect(forum.Message(err)).To(Equal("internal server error"))
	})

	It("honors the request timeout", func() {
		mux.HandleFunc("GET /api/topics", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		slow := forum.NewClient(server.URL+"/api", forum.WithTimeout(50*time.Millisecond))

		_, err := slow.ListTopics(ctx)
		Expect(err).To(HaveOccurred())
		Expect(forum.IsNotFound(err)).To(BeFalse())
	})

	It("lists topic experts", func() {
		mux.HandleFunc("GET /api/topics/t1/experts", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[{"name":"physicist","label":"Physicist","description":"","source":"preset","role_file":"agents/physicist/role.md","added_at":"2025-01-01T00:00:00"}]`)
		})

		experts, err := client.ListTopicExperts(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(experts).To(HaveLen(1))
		Expect(experts[0].Name).To(Equal("physicist"))
	})
})

var _ = Describe("ParseTimestamp", func() {
	It("accepts zoned and naive timestamps", func() {
		zoned, err := forum.ParseTimestamp("2025-01-01T10:00:00Z")
		Expect(err).NotTo(HaveOccurred())
		naive, err := forum.ParseTimestamp("2025-01-01T10:00:00.123456")
		Expect(err).NotTo(HaveOccurred())
		Expect(naive.After(zoned)).To(BeTrue())
	})

	It("rejects empty values", func() {
		_, err := forum.ParseTimestamp("  ")
		Expect(err).To(HaveOccurred())
	})
})
