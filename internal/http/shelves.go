package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/booklog/internal/auth"
	"github.com/mrlokans/booklog/internal/database/books"
	"github.com/mrlokans/booklog/internal/database/shelves"
	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/tasks"
)

// BookSaver stores the book picked in an add form.
type BookSaver interface {
	CreateOrGet(f books.Fields) (*entities.Book, bool, error)
}

// TaskEnqueuer queues background work. Implemented by tasks.Client.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
}

// ShelvesController serves the reviews, reading and plans pages and their forms.
type ShelvesController struct {
	books       BookSaver
	shelves     *shelves.Repository
	tasks       TaskEnqueuer
	templates   *template.Template
	pages       *LivePages
	authEnabled bool
}

func NewShelvesController(bookSaver BookSaver, shelf *shelves.Repository, taskQueue TaskEnqueuer, templates *template.Template, pages *LivePages, authEnabled bool) *ShelvesController {
	return &ShelvesController{
		books:       bookSaver,
		shelves:     shelf,
		tasks:       taskQueue,
		templates:   templates,
		pages:       pages,
		authEnabled: authEnabled,
	}
}

func (sc *ShelvesController) RegisterRoutes(router gin.IRouter) {
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, auth.HomePath) })

	router.GET("/reviews", sc.ReviewsPage)
	router.POST("/reviews", sc.AddReview)
	router.POST("/reviews/:id", sc.UpdateReview)
	router.POST("/reviews/:id/delete", sc.DeleteReview)

	router.GET("/reading", sc.ReadingPage)
	router.POST("/reading", sc.AddReading)
	router.POST("/reading/:id", sc.UpdateReading)
	router.POST("/reading/:id/delete", sc.DeleteReading)
	router.POST("/reading/:id/read", sc.MarkReadingAsRead)

	router.GET("/plans", sc.PlansPage)
	router.POST("/plans", sc.AddPlan)
	router.POST("/plans/:id", sc.UpdatePlan)
	router.POST("/plans/:id/delete", sc.DeletePlan)
	router.POST("/plans/:id/read", sc.MarkPlanAsRead)
	router.POST("/plans/:id/reading", sc.MovePlanToReading)
}

// Pages

func (sc *ShelvesController) ReviewsPage(c *gin.Context) {
	reviews, err := sc.shelves.ListReviews(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list reviews")
		return
	}
	sc.renderPage(c, "reviews.html", "Reviews", gin.H{"Reviews": reviews})
}

func (sc *ShelvesController) ReadingPage(c *gin.Context) {
	readings, err := sc.shelves.ListReadings(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list readings")
		return
	}
	sc.renderPage(c, "reading.html", "Reading", gin.H{"Readings": readings})
}

func (sc *ShelvesController) PlansPage(c *gin.Context) {
	plans, err := sc.shelves.ListPlans(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list plans")
		return
	}
	sc.renderPage(c, "plans.html", "Plans", gin.H{"Plans": plans})
}

// renderPage renders a shelf page and makes it the visitor's live page. A page the
// widget cannot bind to is still served, only without live search.
func (sc *ShelvesController) renderPage(c *gin.Context, name, title string, data gin.H) {
	data["Title"] = title
	data["Path"] = c.Request.URL.Path
	data["Today"] = time.Now().Format(formDateLayout)
	data["Error"] = c.Query("error")
	data["AuthEnabled"] = sc.authEnabled
	data["Username"] = auth.GetUsername(c)
	data["CSRFField"] = auth.CSRFTokenField(c)
	data["CSRFToken"] = auth.GetCSRFToken(c)

	var buf bytes.Buffer
	if err := sc.templates.ExecuteTemplate(&buf, name, data); err != nil {
		respondInternalError(c, err, "render "+name)
		return
	}

	if _, err := sc.pages.Open(c, buf.String()); err != nil {
		log.Printf("[BOOKSEARCH] Live search unavailable on %s: %v", c.Request.URL.Path, err)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// Reviews

func (sc *ShelvesController) AddReview(c *gin.Context) {
	in, ok := reviewInput(c)
	if !ok {
		return
	}
	book, ok := sc.saveBook(c, "/reviews")
	if !ok {
		return
	}
	if _, err := sc.shelves.AddReview(GetUserID(c), book.ID, in); err != nil {
		respondInternalError(c, err, "add review")
		return
	}
	redirectAfterPost(c, "/reviews")
}

func (sc *ShelvesController) UpdateReview(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	in, ok := reviewInput(c)
	if !ok {
		return
	}
	if _, err := sc.shelves.UpdateReview(GetUserID(c), id, in); err != nil {
		respondRepositoryError(c, err, "review")
		return
	}
	redirectAfterPost(c, "/reviews")
}

func (sc *ShelvesController) DeleteReview(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := sc.shelves.DeleteReview(GetUserID(c), id); err != nil {
		respondRepositoryError(c, err, "review")
		return
	}
	redirectAfterPost(c, "/reviews")
}

// Reading

func (sc *ShelvesController) AddReading(c *gin.Context) {
	dateStarted, ok := parseOptionalFormDate(c, "date_started")
	if !ok {
		return
	}
	book, ok := sc.saveBook(c, "/reading")
	if !ok {
		return
	}
	_, err := sc.shelves.AddReading(GetUserID(c), book.ID, c.PostForm("note"), dateStarted)
	if errors.Is(err, shelves.ErrAlreadyReading) {
		respondFormError(c, "/reading", http.StatusConflict, "You are already reading "+book.Title)
		return
	}
	if err != nil {
		respondInternalError(c, err, "add reading")
		return
	}
	redirectAfterPost(c, "/reading")
}

func (sc *ShelvesController) UpdateReading(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	dateStarted, ok := parseOptionalFormDate(c, "date_started")
	if !ok {
		return
	}
	if _, err := sc.shelves.UpdateReading(GetUserID(c), id, c.PostForm("note"), dateStarted); err != nil {
		respondRepositoryError(c, err, "reading")
		return
	}
	redirectAfterPost(c, "/reading")
}

func (sc *ShelvesController) DeleteReading(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := sc.shelves.DeleteReading(GetUserID(c), id); err != nil {
		respondRepositoryError(c, err, "reading")
		return
	}
	redirectAfterPost(c, "/reading")
}

func (sc *ShelvesController) MarkReadingAsRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	in, ok := reviewInput(c)
	if !ok {
		return
	}
	if _, err := sc.shelves.MarkReadingAsRead(GetUserID(c), id, in); err != nil {
		respondRepositoryError(c, err, "reading")
		return
	}
	redirectAfterPost(c, "/reviews")
}

// Plans

func (sc *ShelvesController) AddPlan(c *gin.Context) {
	dateAdded, ok := parseFormDate(c, "date_added")
	if !ok {
		return
	}
	book, ok := sc.saveBook(c, "/plans")
	if !ok {
		return
	}
	_, err := sc.shelves.AddPlan(GetUserID(c), book.ID, c.PostForm("note"), dateAdded)
	if errors.Is(err, shelves.ErrAlreadyPlanned) {
		respondFormError(c, "/plans", http.StatusConflict, book.Title+" is already in your plans")
		return
	}
	if err != nil {
		respondInternalError(c, err, "add plan")
		return
	}
	redirectAfterPost(c, "/plans")
}

func (sc *ShelvesController) UpdatePlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	dateAdded, ok := parseFormDate(c, "date_added")
	if !ok {
		return
	}
	if _, err := sc.shelves.UpdatePlan(GetUserID(c), id, c.PostForm("note"), dateAdded); err != nil {
		respondRepositoryError(c, err, "plan")
		return
	}
	redirectAfterPost(c, "/plans")
}

func (sc *ShelvesController) DeletePlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := sc.shelves.DeletePlan(GetUserID(c), id); err != nil {
		respondRepositoryError(c, err, "plan")
		return
	}
	redirectAfterPost(c, "/plans")
}

func (sc *ShelvesController) MarkPlanAsRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	in, ok := reviewInput(c)
	if !ok {
		return
	}
	if _, err := sc.shelves.MarkPlanAsRead(GetUserID(c), id, in); err != nil {
		respondRepositoryError(c, err, "plan")
		return
	}
	redirectAfterPost(c, "/reviews")
}

func (sc *ShelvesController) MovePlanToReading(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	dateStarted, ok := parseOptionalFormDate(c, "date_started")
	if !ok {
		return
	}
	_, err := sc.shelves.MovePlanToReading(GetUserID(c), id, dateStarted)
	if errors.Is(err, shelves.ErrAlreadyReading) {
		respondFormError(c, "/plans", http.StatusConflict, "You are already reading that book")
		return
	}
	if err != nil {
		respondRepositoryError(c, err, "plan")
		return
	}
	redirectAfterPost(c, "/reading")
}

// saveBook stores the book fields the widget populated. A newly saved book with a
// cover gets its cover cached in the background.
func (sc *ShelvesController) saveBook(c *gin.Context, page string) (*entities.Book, bool) {
	book, created, err := sc.books.CreateOrGet(books.Fields{
		SourceID:    c.PostForm("source_id"),
		Title:       c.PostForm("title"),
		Author:      c.PostForm("author"),
		Year:        c.PostForm("year"),
		ImageURL:    c.PostForm("image_url"),
		Identifiers: c.PostForm("identifiers"),
		ISBN10:      c.PostForm("isbn_10"),
		ISBN13:      c.PostForm("isbn_13"),
	})
	if errors.Is(err, books.ErrSourceIDRequired) {
		respondFormError(c, page, http.StatusBadRequest, "Pick a book from the search results first")
		return nil, false
	}
	if err != nil {
		respondInternalError(c, err, "save book")
		return nil, false
	}

	if created && book.ImageURL != "" && sc.tasks != nil {
		if _, err := sc.tasks.Enqueue(c.Request.Context(), tasks.CacheCoverTask{BookID: book.ID}); err != nil {
			log.Printf("[TASK] Failed to queue cover of book %d: %v", book.ID, err)
		}
	}
	return book, true
}

func reviewInput(c *gin.Context) (shelves.ReviewInput, bool) {
	dateRead, ok := parseFormDate(c, "date_read")
	if !ok {
		return shelves.ReviewInput{}, false
	}
	return shelves.ReviewInput{
		ReviewText:   c.PostForm("review_text"),
		DateRead:     dateRead,
		DidNotFinish: formBool(c, "did_not_finish"),
		IsFavourite:  formBool(c, "is_favourite"),
	}, true
}

// respondFormError reports a rejected form. Browsers go back to the page with the
// message shown; HTMX and JSON clients get the status.
func respondFormError(c *gin.Context, page string, status int, message string) {
	if isHTMXRequest(c) || c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		respondError(c, status, message)
		return
	}
	c.Redirect(http.StatusSeeOther, page+"?error="+url.QueryEscape(message))
}
