package controllers

import (
	"errors"
	"io"
	"myblog-restful/auth"
	"myblog-restful/models"
	"myblog-restful/services"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

// maxUploadBytes caps how much of a multipart body is held in memory.
const maxUploadBytes = 32 << 20

// PostController exposes the post CRUD and the admin media routes.
type PostController struct {
	postService services.PostService
	issuer      *auth.TokenIssuer
}

// NewPostController creates a PostController instance
func NewPostController(postService services.PostService, issuer *auth.TokenIssuer) *PostController {
	return &PostController{postService: postService, issuer: issuer}
}

// AuthorResponse is the slice of the user record a post listing exposes.
type AuthorResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// PostResponse defines the response structure of a post
type PostResponse struct {
	ID        uint           `json:"id"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Content   string         `json:"content"`
	Cover     string         `json:"cover"`
	Author    AuthorResponse `json:"author"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MutationResponse is returned by update/delete: the outcome plus an optional
// warning when the media host step failed but the record change went through.
type MutationResponse struct {
	Message string        `json:"message"`
	Post    *PostResponse `json:"post,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

type DeleteImageInput struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

func mapModelToPostResponse(post *models.Post) PostResponse {
	if post == nil {
		return PostResponse{}
	}
	return PostResponse{
		ID:        post.ID,
		Title:     post.Title,
		Summary:   post.Summary,
		Content:   post.Content,
		Cover:     post.Cover,
		Author:    AuthorResponse{ID: post.AuthorID, Username: post.Author.Username},
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

// --- go-restful Route Definitions ---

// RegisterRoutes sets up the post-related routes for a go-restful WebService.
func (ctl *PostController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/post").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)

	// Admin media routes first, so "/admin/..." never matches "/{post-id}".
	ws.Route(ws.GET("/admin/cleanup/preview").Filter(ctl.issuer.RequireAuth()).To(ctl.previewOrphansHandler).
		Doc("Report media objects no post references, without deleting").
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Writes(services.OrphanReport{}).
		Returns(http.StatusOK, "Orphan report", services.OrphanReport{}).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil))

	ws.Route(ws.POST("/admin/cleanup/execute").Filter(ctl.issuer.RequireAuth()).To(ctl.cleanupOrphansHandler).
		Doc("Delete every orphaned media object").
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Writes(services.CleanupReport{}).
		Returns(http.StatusOK, "Cleanup report", services.CleanupReport{}).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil))

	ws.Route(ws.DELETE("/admin/image").Filter(ctl.issuer.RequireAuth()).To(ctl.deleteImageHandler).
		Doc("Delete one media object by public id or URL").
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Reads(DeleteImageInput{}).
		Returns(http.StatusOK, "Image deleted", nil).
		Returns(http.StatusBadRequest, "public_id or url required", nil).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil).
		Returns(http.StatusNotFound, "Image not found", nil))

	// Public reads
	ws.Route(ws.GET("").To(ctl.listPostsHandler).
		Doc("List the 20 most recent posts").
		Metadata(restfulspec.KeyOpenAPITags, []string{"posts"}).
		Writes([]PostResponse{}).
		Returns(http.StatusOK, "Posts listed", []PostResponse{}))

	ws.Route(ws.GET("/{post-id}").To(ctl.getPostHandler).
		Doc("Fetch a single post").
		Param(ws.PathParameter("post-id", "Identifier of the post").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"posts"}).
		Writes(PostResponse{}).
		Returns(http.StatusOK, "Post found", PostResponse{}).
		Returns(http.StatusNotFound, "Post not found", nil))

	// Authenticated mutations; create and update arrive as multipart forms
	// because the cover image rides along.
	ws.Route(ws.POST("").Filter(ctl.issuer.RequireAuth()).To(ctl.createPostHandler).
		Consumes("multipart/form-data").
		Doc("Create a post with a cover image (field 'file')").
		Metadata(restfulspec.KeyOpenAPITags, []string{"posts"}).
		Returns(http.StatusCreated, "Post created", PostResponse{}).
		Returns(http.StatusBadRequest, "No image file provided", nil).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Readers cannot create posts", nil))

	ws.Route(ws.PUT("/{post-id}").Filter(ctl.issuer.RequireAuth()).To(ctl.updatePostHandler).
		Consumes("multipart/form-data").
		Doc("Update a post; include field 'file' to replace the cover").
		Param(ws.PathParameter("post-id", "Identifier of the post").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"posts"}).
		Returns(http.StatusOK, "Post updated", MutationResponse{}).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Not the author", nil).
		Returns(http.StatusNotFound, "Post not found", nil))

	ws.Route(ws.DELETE("/{post-id}").Filter(ctl.issuer.RequireAuth()).To(ctl.deletePostHandler).
		Doc("Delete a post and its cover (admins only)").
		Param(ws.PathParameter("post-id", "Identifier of the post").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"posts"}).
		Returns(http.StatusOK, "Post deleted", MutationResponse{}).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Only admins can delete posts", nil).
		Returns(http.StatusNotFound, "Post not found", nil))
}

// --- go-restful Handler Functions ---

func (ctl *PostController) listPostsHandler(request *restful.Request, response *restful.Response) {
	posts, err := ctl.postService.GetPosts()
	if err != nil {
		handleServiceError(response, err)
		return
	}

	postResponses := make([]PostResponse, len(posts))
	for i, post := range posts {
		postResponses[i] = mapModelToPostResponse(&post)
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, postResponses, restful.MIME_JSON)
}

func (ctl *PostController) getPostHandler(request *restful.Request, response *restful.Response) {
	postID, ok := parseIDParam(request, response, "post-id")
	if !ok {
		return
	}

	post, err := ctl.postService.GetPost(postID)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, mapModelToPostResponse(post), restful.MIME_JSON)
}

// readPostForm pulls the text fields and the optional cover file out of a
// multipart request. The returned closer is nil when no file was sent.
func readPostForm(request *restful.Request) (title, summary, content, filename string, file io.ReadCloser, err error) {
	if err = request.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		return
	}

	title = request.Request.FormValue("title")
	summary = request.Request.FormValue("summary")
	content = request.Request.FormValue("content")

	f, header, ferr := request.Request.FormFile("file")
	if ferr != nil {
		if errors.Is(ferr, http.ErrMissingFile) {
			return // no file is the caller's problem to judge
		}
		err = ferr
		return
	}
	filename = header.Filename
	file = f
	return
}

func (ctl *PostController) createPostHandler(request *restful.Request, response *restful.Response) {
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	title, summary, content, filename, file, err := readPostForm(request)
	if err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid form data: " + err.Error()}, restful.MIME_JSON)
		return
	}
	if file != nil {
		defer file.Close()
	}

	input := &services.CreatePostInput{
		Title:         title,
		Summary:       summary,
		Content:       content,
		CoverFilename: filename,
	}
	if file != nil {
		input.CoverFile = file
	}

	post, err := ctl.postService.CreatePost(request.Request.Context(), principal, input)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusCreated, mapModelToPostResponse(post), restful.MIME_JSON)
}

func (ctl *PostController) updatePostHandler(request *restful.Request, response *restful.Response) {
	postID, ok := parseIDParam(request, response, "post-id")
	if !ok {
		return
	}
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	title, summary, content, filename, file, err := readPostForm(request)
	if err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid form data: " + err.Error()}, restful.MIME_JSON)
		return
	}
	if file != nil {
		defer file.Close()
	}

	input := &services.UpdatePostInput{
		Title:         title,
		Summary:       summary,
		Content:       content,
		CoverFilename: filename,
	}
	if file != nil {
		input.CoverFile = file
	}

	post, warning, err := ctl.postService.UpdatePost(request.Request.Context(), principal, postID, input)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	resp := mapModelToPostResponse(post)
	_ = response.WriteHeaderAndJson(http.StatusOK, MutationResponse{
		Message: "Post updated successfully",
		Post:    &resp,
		Warning: warning,
	}, restful.MIME_JSON)
}

func (ctl *PostController) deletePostHandler(request *restful.Request, response *restful.Response) {
	postID, ok := parseIDParam(request, response, "post-id")
	if !ok {
		return
	}
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	warning, err := ctl.postService.DeletePost(request.Request.Context(), principal, postID)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, MutationResponse{
		Message: "Post and image deleted successfully",
		Warning: warning,
	}, restful.MIME_JSON)
}

func (ctl *PostController) previewOrphansHandler(request *restful.Request, response *restful.Response) {
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	report, err := ctl.postService.PreviewOrphans(request.Request.Context(), principal)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, report, restful.MIME_JSON)
}

func (ctl *PostController) cleanupOrphansHandler(request *restful.Request, response *restful.Response) {
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	report, err := ctl.postService.CleanupOrphans(request.Request.Context(), principal)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, report, restful.MIME_JSON)
}

func (ctl *PostController) deleteImageHandler(request *restful.Request, response *restful.Response) {
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	input := new(DeleteImageInput)
	if err := request.ReadEntity(input); err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid request body: " + err.Error()}, restful.MIME_JSON)
		return
	}

	publicID, err := ctl.postService.DeleteImage(request.Request.Context(), principal, input.PublicID, input.URL)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, map[string]string{
		"message":   "Image deleted successfully",
		"public_id": publicID,
	}, restful.MIME_JSON)
}
