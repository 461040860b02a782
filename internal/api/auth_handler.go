package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sengunthar/matrimony/internal/db"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/service/account"
	"github.com/sengunthar/matrimony/internal/storage"
)

// signup bodies carry at most one file per field plus the text fields
var maxSignupBody = int64(len(storage.Fields))*storage.MaxUploadSize + 1<<20

type credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type principalView struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Signup registers a pending member from a multipart form.
func (h *Handler) Signup(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSignupBody)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if _, err := c.MultipartForm(); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				abortWithError(c, svcErr.Validation("upload too large"))
				return
			}
			abortWithError(c, svcErr.Validation("invalid multipart form"))
			return
		}
	}

	profile, err := profileFromForm(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	in := account.RegisterInput{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
		Phone:    c.PostForm("phone"),
		WhatsApp: c.PostForm("whatsapp"),
		Profile:  profile,
	}

	for _, field := range storage.Fields {
		fh, err := c.FormFile(string(field))
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			abortWithError(c, svcErr.Validation("invalid upload "+string(field)))
			return
		}
		if fh.Size > storage.MaxUploadSize {
			abortWithError(c, svcErr.Validation(storage.ErrTooLarge.Error()))
			return
		}
		f, err := fh.Open()
		if err != nil {
			abortWithError(c, svcErr.Internal(err))
			return
		}
		defer f.Close()
		in.Uploads = append(in.Uploads, account.Upload{Field: field, Filename: fh.Filename, Body: f})
	}

	if _, err := h.Accounts.Register(c.Request.Context(), in); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": "Profile created successfully! Admin will verify within 2 days.",
	})
}

// Login authenticates a member.
func (h *Handler) Login(c *gin.Context) {
	var body credentials
	_ = c.ShouldBind(&body)

	sess, err := h.Accounts.Authenticate(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user":  principalView{ID: sess.User.ID, Name: sess.User.Name, Email: sess.User.Email, Role: "user"},
	})
}

// AdminLogin authenticates an operator.
func (h *Handler) AdminLogin(c *gin.Context) {
	var body credentials
	_ = c.ShouldBind(&body)

	sess, err := h.Accounts.AuthenticateAdmin(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"admin": principalView{ID: sess.Admin.ID, Name: sess.Admin.Name, Email: sess.Admin.Email, Role: "admin"},
	})
}

// profileFromForm reads the descriptive signup fields. Blank numbers are
// left unset; malformed ones are rejected.
func profileFromForm(c *gin.Context) (db.Profile, error) {
	p := db.Profile{
		Gender:       c.PostForm("gender"),
		DOB:          c.PostForm("dob"),
		BirthTime:    c.PostForm("birth_time"),
		BirthPlace:   c.PostForm("birth_place"),
		Religion:     c.PostForm("religion"),
		Caste:        c.DefaultPostForm("caste", "SENGUNTHAR"),
		SubCaste:     c.PostForm("sub_caste"),
		Gothram:      c.PostForm("gothram"),
		Star:         c.PostForm("star"),
		Rasi:         c.PostForm("rasi"),
		Education:    c.PostForm("education"),
		Occupation:   c.PostForm("occupation"),
		JobLocation:  c.PostForm("job_location"),
		Income:       c.PostForm("income"),
		BodyType:     c.PostForm("body_type"),
		Complexion:   c.PostForm("complexion"),
		MotherTongue: c.PostForm("mother_tongue"),
		Disability:   c.DefaultPostForm("disability", "no"),

		FatherOccupation: c.PostForm("father_occupation"),
		MotherOccupation: c.PostForm("mother_occupation"),
		FamilyDetails:    c.PostForm("family_details"),

		PartnerEducation:     c.PostForm("partner_education"),
		PartnerOccupation:    c.PostForm("partner_occupation"),
		PartnerIncome:        c.PostForm("partner_income"),
		PartnerMaritalStatus: c.DefaultPostForm("partner_marital_status", "unmarried"),
		PartnerExpectations:  c.PostForm("partner_expectations"),

		Address:   c.PostForm("address"),
		City:      c.PostForm("city"),
		State:     c.PostForm("state"),
		Pincode:   c.PostForm("pincode"),
		About:     c.PostForm("about"),
		Interests: c.PostForm("interests"),
	}
	// empty strings fall back to the same defaults as absent fields
	if p.Caste == "" {
		p.Caste = "SENGUNTHAR"
	}
	if p.Disability == "" {
		p.Disability = "no"
	}
	if p.PartnerMaritalStatus == "" {
		p.PartnerMaritalStatus = "unmarried"
	}

	var err error
	if p.Age, err = optionalInt(c, "age"); err != nil {
		return p, err
	}
	if p.Height, err = optionalInt(c, "height"); err != nil {
		return p, err
	}
	if p.Weight, err = optionalInt(c, "weight"); err != nil {
		return p, err
	}
	for name, dst := range map[string]*int{
		"elder_brothers":   &p.ElderBrothers,
		"younger_brothers": &p.YoungerBrothers,
		"elder_sisters":    &p.ElderSisters,
		"younger_sisters":  &p.YoungerSisters,
	} {
		n, err := optionalInt(c, name)
		if err != nil {
			return p, err
		}
		if n != nil {
			*dst = *n
		}
	}
	return p, nil
}

func optionalInt(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, svcErr.Validation(name + " must be a non-negative number")
	}
	return &n, nil
}
