package extraction

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

var _ = Describe("Chat", func() {
	var (
		server     *ghttp.Server
		chat       *Chat
		taxonomy   []string
		rawText    string
		candidates []Candidate
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		chat, newErr = NewChat(server.URL(), "test-key", "test-model")
		Expect(newErr).NotTo(HaveOccurred())

		taxonomy = []string{"高等数学", "线性代数", "其他"}
		rawText = "高等数学 第七版 同济大学出版社\n---BOOK_SEPARATOR---\n线性代数 第五版"
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		candidates, err = chat.Extract(context.Background(), rawText, taxonomy)
	})

	When("the upstream returns a well-formed array", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v1/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test-key"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply(
					`[{"title": "高等数学", "edition": "第七版", "category": "高等数学"},
					  {"title": "线性代数", "edition": "第五版", "category": "线性代数"}]`)),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return both candidates", func() {
			Expect(candidates).To(HaveLen(2))
		})

		It("should issue exactly one request", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the upstream returns a malformed response once", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply("抱歉，我无法提取书籍信息")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply(`[{"title": "高等数学"}]`)),
			)
		})

		It("should retry once and succeed", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(HaveLen(1))
		})

		It("should issue exactly two requests", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})

	When("the upstream returns malformed responses twice in a row", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply("not json")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply("still not json")),
			)
		})

		It("should return an ExtractionError", func() {
			var extErr *ExtractionError
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &extErr)).To(BeTrue())
		})

		It("should preserve the raw recognized text", func() {
			var extErr *ExtractionError
			Expect(errors.As(err, &extErr)).To(BeTrue())
			Expect(extErr.RawText).To(Equal(rawText))
		})

		It("should not retry a third time", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})

	When("the upstream fails at the transport level", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusInternalServerError, "upstream exploded"),
			)
		})

		It("should return an ExtractionError without retrying", func() {
			var extErr *ExtractionError
			Expect(errors.As(err, &extErr)).To(BeTrue())
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})
