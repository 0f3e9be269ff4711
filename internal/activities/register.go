package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ConvertPaperActivity)
	w.RegisterActivity(a.NormalizePaperActivity)
	w.RegisterActivity(a.CacheNormalizedActivity)
	w.RegisterActivity(a.ChunkPaperActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.IndexChunksActivity)
	w.RegisterActivity(a.GenerateReviewActivity)
	w.RegisterActivity(a.ScoreReviewActivity)
	w.RegisterActivity(a.AssessInnovationActivity)
	w.RegisterActivity(a.UpdatePaperStatusActivity)
	w.RegisterActivity(a.LogModelCallActivity)
}
